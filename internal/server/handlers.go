package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Ultrahd-dev/pronote-assistant/internal/ai"
	"github.com/Ultrahd-dev/pronote-assistant/internal/auth"
	"github.com/Ultrahd-dev/pronote-assistant/internal/portal"
)

// healthTimeout ограничивает проверку хранилища сессий
const healthTimeout = 2 * time.Second

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "Pronote Assistant API",
		"version": Version,
		"status":  "running",
		"endpoints": []string{
			"GET /api/health",
			"GET /api/ents",
			"POST /api/auth/login/direct",
			"POST /api/auth/login/cas",
			"POST /api/auth/logout",
			"POST /api/pronote/homework",
			"POST /api/pronote/timetable",
			"POST /api/pronote/grades",
			"POST /api/ai/chat",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	status, storeStatus := "healthy", "ok"
	if err := s.sessions.Ping(ctx); err != nil {
		s.logger.Warn("session store unreachable", "store", s.sessions.StoreName(), "error", err)
		status, storeStatus = "degraded", "unreachable"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       status,
		"store":        s.sessions.StoreName(),
		"store_status": storeStatus,
		"timestamp":    s.now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	providers := portal.Providers()
	writeJSON(w, http.StatusOK, map[string]any{
		"ents":  providers,
		"count": len(providers),
	})
}

func (s *Server) handleLoginDirect(w http.ResponseWriter, r *http.Request) {
	var req loginDirectRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Corps de requête invalide")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.login(w, r, "direct", req.credentials())
}

func (s *Server) handleLoginCAS(w http.ResponseWriter, r *http.Request) {
	var req loginCASRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Corps de requête invalide")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.login(w, r, "cas", req.credentials())
}

func (s *Server) login(w http.ResponseWriter, r *http.Request, method string, creds portal.Credentials) {
	result, err := s.auth.Login(r.Context(), creds)
	s.metrics.logins.WithLabelValues(method, outcome(err)).Inc()
	switch {
	case errors.Is(err, portal.ErrAuthentication):
		writeError(w, http.StatusUnauthorized, "Échec d'authentification - identifiants incorrects")
		return
	case errors.Is(err, portal.ErrUnknownProvider):
		writeError(w, http.StatusUnauthorized, fmt.Sprintf("ENT '%s' non trouvé", creds.Provider))
		return
	case err != nil:
		s.logger.Error("login failed", "method", method, "username", creds.Username, "error", err)
		writeError(w, http.StatusInternalServerError, "Erreur de connexion à Pronote")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Success:     true,
		AccessToken: result.AccessToken,
		TokenType:   "bearer",
		ExpiresIn:   result.ExpiresIn,
		Student: studentJSON{
			StudentName:   result.Student.Name,
			ClassName:     result.Student.ClassName,
			Establishment: result.Student.Establishment,
			LoggedIn:      true,
		},
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	if err := s.auth.Logout(r.Context(), principal); err != nil {
		s.logger.Error("logout failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Erreur lors de la déconnexion")
		return
	}
	s.logger.Info("user logged out", "username", principal.Session.UserID)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Déconnexion réussie",
	})
}

func (s *Server) handleHomework(w http.ResponseWriter, r *http.Request) {
	var req dateRangeRequest
	from, to, ok := s.readRange(w, r, &req)
	if !ok {
		return
	}
	start, end := portal.HomeworkRange(from, to, s.now())

	s.withPortal(w, r, "homework", func(ctx context.Context, client portal.Client) error {
		items, err := client.Homework(ctx, start, end)
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success":  true,
			"homework": toHomeworkJSON(items),
			"count":    len(items),
		})
		return nil
	})
}

func (s *Server) handleTimetable(w http.ResponseWriter, r *http.Request) {
	var req dateRangeRequest
	from, to, ok := s.readRange(w, r, &req)
	if !ok {
		return
	}
	start, end := portal.TimetableRange(from, to, s.now())

	s.withPortal(w, r, "timetable", func(ctx context.Context, client portal.Client) error {
		items, err := client.Lessons(ctx, start, end)
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success":   true,
			"timetable": toLessonJSON(items),
			"count":     len(items),
		})
		return nil
	})
}

func (s *Server) handleGrades(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period_name")

	s.withPortal(w, r, "grades", func(ctx context.Context, client portal.Client) error {
		items, err := client.Grades(ctx, period)
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"grades":  toGradeJSON(items),
			"count":   len(items),
		})
		return nil
	})
}

func (s *Server) readRange(w http.ResponseWriter, r *http.Request, req *dateRangeRequest) (from, to *time.Time, ok bool) {
	if err := decodeBody(w, r, req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Corps de requête invalide")
		return nil, nil, false
	}
	from, to, err := req.bounds()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return nil, nil, false
	}
	return from, to, true
}

// withPortal открывает соединение с порталом от имени сессии запроса,
// выполняет fn и переводит ошибки портала в HTTP статусы
func (s *Server) withPortal(w http.ResponseWriter, r *http.Request, op string, fn func(context.Context, portal.Client) error) {
	principal, _ := auth.PrincipalFromContext(r.Context())

	err := func() error {
		client, err := s.auth.Portal(r.Context(), principal)
		if err != nil {
			return err
		}
		defer client.Close()
		return fn(r.Context(), client)
	}()
	s.metrics.portalCalls.WithLabelValues(op, outcome(err)).Inc()
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, portal.ErrPeriodNotFound):
		writeError(w, http.StatusNotFound, fmt.Sprintf("Période '%s' non trouvée", r.URL.Query().Get("period_name")))
	case errors.Is(err, portal.ErrAuthentication):
		// Пароль изменился после входа: сессия больше не годится
		if err := s.auth.Logout(r.Context(), principal); err != nil {
			s.logger.Error("logout after portal rejection failed", "op", op, "username", principal.Session.UserID, "error", err)
		}
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeError(w, http.StatusUnauthorized, "Session Pronote expirée, reconnectez-vous")
	default:
		s.logger.Error("portal request failed", "op", op, "username", principal.Session.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Erreur lors de la récupération des données (%s)", op))
	}
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())

	var req chatRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Corps de requête invalide")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	model := req.Model
	if model == "" {
		model = s.opts.DefaultModel
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.opts.AITimeout)
	defer cancel()

	reply, err := s.ai.Complete(ctx, ai.Request{
		Model:   model,
		System:  ai.SystemPrompt(principal.Session.Student.Name),
		Message: ai.UserTurn(req.Message, req.Context),
	})
	s.metrics.aiCalls.WithLabelValues(s.ai.Name(), outcome(err)).Inc()
	if err != nil {
		s.logger.Error("ai completion failed", "provider", s.ai.Name(), "model", model, "error", err)
		writeError(w, http.StatusBadGateway, "Erreur du service IA")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"response": reply.Text,
		"model":    reply.Model,
		"usage":    reply.Usage,
	})
}
