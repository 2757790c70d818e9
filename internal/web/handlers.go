package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"vendorplan/internal/capture"
	"vendorplan/internal/config"
	"vendorplan/internal/filter"
	"vendorplan/internal/ics"
	appLog "vendorplan/internal/log"
	"vendorplan/internal/model"
	"vendorplan/internal/planner"
	"vendorplan/internal/route"
)

// criteriaParams are the query keys of the filter form.
var criteriaParams = []string{"state", "type", "status", "q", "from", "to"}

// pageData feeds templates/index.html.
type pageData struct {
	View     planner.View
	Advisory string
	Map      config.MapConfig
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleIndex renders the planner page. When the request carries any of
// the filter form fields they replace the current criteria.
//
// GET /?state=GA&type=festival&status=open&q=peach&from=2025-04-01&to=2025-06-30
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	v := s.planner.View()
	for _, key := range criteriaParams {
		if q.Has(key) {
			v = s.planner.SetCriteria(criteriaFromQuery(q))
			break
		}
	}
	s.renderPage(w, http.StatusOK, v, "")
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.planner.ClearCriteria()
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleToggleRoute(w http.ResponseWriter, r *http.Request) {
	if _, err := s.planner.ToggleSelection(eventID(r)); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	f, err := s.planner.CalendarFile(eventID(r))
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	writeFile(w, f)
}

func (s *Server) handleMail(w http.ResponseWriter, r *http.Request) {
	link, err := s.planner.MailTo(eventID(r))
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	http.Redirect(w, r, link, http.StatusFound)
}

// handleRoute sends the browser to the directions service, or shows the
// page again with the empty-route advisory.
func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	link, err := s.planner.Route()
	if errors.Is(err, route.ErrEmptyRoute) {
		s.renderPage(w, http.StatusOK, s.planner.View(), route.EmptyRouteMessage)
		return
	}
	if err != nil {
		http.Error(w, errorText(err), statusFor(err))
		return
	}
	http.Redirect(w, r, link, http.StatusFound)
}

func (s *Server) handleRouteCalendar(w http.ResponseWriter, _ *http.Request) {
	f, err := s.planner.RouteCalendarFile()
	if err != nil {
		http.Error(w, errorText(err), statusFor(err))
		return
	}
	writeFile(w, f)
}

// handleSnapshot renders the planner page in headless Chromium and returns
// the PNG.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.capture == nil {
		http.Error(w, "snapshot not available", http.StatusServiceUnavailable)
		return
	}

	opts := capture.Options{
		URL:        s.selfURL(),
		OutputPath: s.cfg.Capture.OutputPath,
		Width:      s.cfg.Capture.Width,
		Height:     s.cfg.Capture.Height,
		Timeout:    time.Duration(s.cfg.Capture.TimeoutSeconds) * time.Second,
	}
	if s.basicAuthEnabled() {
		opts.Username = s.cfg.BasicAuth.Username
		opts.Password = s.cfg.BasicAuth.Password
	}

	png, err := s.capture(r.Context(), opts)
	if err != nil {
		appLog.Error("snapshot capture failed", err, "url", opts.URL)
		http.Error(w, "snapshot failed", http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}

func (s *Server) handleAPIView(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.planner.View())
}

// handleAPISetCriteria replaces the criteria with the JSON body.
//
// PUT /api/criteria {"state":"GA","search":"market","startBound":"2025-04-01"}
func (s *Server) handleAPISetCriteria(w http.ResponseWriter, r *http.Request) {
	var c filter.Criteria
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid criteria: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.planner.SetCriteria(c))
}

func (s *Server) handleAPIClearCriteria(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.planner.ClearCriteria())
}

func (s *Server) handleAPIToggleSelection(w http.ResponseWriter, r *http.Request) {
	v, err := s.planner.ToggleSelection(eventID(r))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleAPIRoute(w http.ResponseWriter, _ *http.Request) {
	link, err := s.planner.Route()
	if err != nil {
		writeError(w, statusFor(err), errorText(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": link})
}

// handleAPIReload loads the collection again. A failed reload keeps the
// previous collection; the error is returned and also shown in the view.
func (s *Server) handleAPIReload(w http.ResponseWriter, r *http.Request) {
	if s.loader == nil {
		writeError(w, http.StatusServiceUnavailable, "no event source configured")
		return
	}
	if err := s.planner.Load(r.Context(), s.loader); err != nil {
		appLog.Error("reload failed", err)
		writeError(w, http.StatusBadGateway, "Could not load events: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.planner.View())
}

func (s *Server) renderPage(w http.ResponseWriter, status int, v planner.View, advisory string) {
	var buf bytes.Buffer
	err := s.page.Execute(&buf, pageData{
		View:     v,
		Advisory: advisory,
		Map:      s.cfg.Map,
	})
	if err != nil {
		appLog.Error("failed to render page", err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func writeFile(w http.ResponseWriter, f ics.File) {
	w.Header().Set("Content-Type", f.ContentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(f.Name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(f.Body)
}

// eventID reads the {id} segment. chi matches on RawPath when the request
// has one (an escaped "/" in the id), and the param is still escaped then;
// otherwise it matches on the decoded Path.
func eventID(r *http.Request) model.ID {
	id := chi.URLParam(r, "id")
	if r.URL.RawPath == "" {
		return model.ID(id)
	}
	if unescaped, err := url.PathUnescape(id); err == nil {
		return model.ID(unescaped)
	}
	return model.ID(id)
}

func criteriaFromQuery(q url.Values) filter.Criteria {
	return filter.Criteria{
		State:      q.Get("state"),
		Type:       q.Get("type"),
		Status:     q.Get("status"),
		Search:     q.Get("q"),
		StartBound: q.Get("from"),
		EndBound:   q.Get("to"),
	}
}
