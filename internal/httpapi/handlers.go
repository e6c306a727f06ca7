package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"jobpulse/internal/msgsync"
	logx "jobpulse/pkg/logx"
)

const MaxQueryLimit = 100

type errorBody struct {
	Error string       `json:"error"`
	Kind  msgsync.Kind `json:"kind,omitempty"`
}

type updatesResponse struct {
	Results []msgsync.UpdateOutcome `json:"results"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, kind msgsync.Kind) {
	writeJSON(w, status, errorBody{Error: msg, Kind: kind})
}

func (s *Service) healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Service) postUpdates(w http.ResponseWriter, r *http.Request) {
	log := s.log.With(logx.String("rid", requestID(r.Context())))
	if s.update == nil {
		log.Error("updates: batch runner not configured")
		writeError(w, http.StatusInternalServerError, "update service unavailable", msgsync.KindConfiguration)
		return
	}

	s.mu.Lock()
	limit := s.cfg.MaxBodyBytes
	s.mu.Unlock()
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeError(w, http.StatusRequestEntityTooLarge, "body too large", msgsync.KindValidation)
			return
		}
		writeError(w, http.StatusBadRequest, "read body failed", msgsync.KindValidation)
		return
	}
	if err := validateBody(s.schema, body); err != nil {
		log.Debug("updates: rejected body", logx.Err(err))
		writeError(w, http.StatusBadRequest, "body must be an array of update requests", msgsync.KindValidation)
		return
	}
	var reqs []msgsync.UpdateRequest
	if err := json.Unmarshal(body, &reqs); err != nil {
		writeError(w, http.StatusBadRequest, "body must be an array of update requests", msgsync.KindValidation)
		return
	}

	results := s.update.Run(r.Context(), reqs)
	failed := 0
	for _, o := range results {
		if !o.Success {
			failed++
		}
	}
	log.Info("updates applied", logx.Int("items", len(reqs)), logx.Int("failed", failed))
	writeJSON(w, http.StatusOK, updatesResponse{Results: results})
}

func (s *Service) getMessages(w http.ResponseWriter, r *http.Request) {
	log := s.log.With(logx.String("rid", requestID(r.Context())))
	q, err := parseQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), msgsync.KindValidation)
		return
	}
	if s.query == nil {
		writeError(w, http.StatusInternalServerError, "history service unavailable", msgsync.KindConfiguration)
		return
	}

	res, err := s.query.Query(r.Context(), q)
	if err != nil {
		kind := msgsync.KindOf(err)
		status := statusFor(kind)
		if status >= 500 {
			log.Warn("messages: query failed", logx.String("kind", string(kind)), logx.Err(err))
		}
		writeError(w, status, err.Error(), kind)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func parseQuery(r *http.Request) (msgsync.RetrievalQuery, error) {
	v := r.URL.Query()
	cutoff, err := msgsync.ParseCutoff(v.Get("date"))
	if err != nil {
		return msgsync.RetrievalQuery{}, err
	}
	page, err := positiveInt(v.Get("page"), msgsync.DefaultPage)
	if err != nil {
		return msgsync.RetrievalQuery{}, fmt.Errorf("page: %w", err)
	}
	limit, err := positiveInt(v.Get("limit"), msgsync.DefaultLimit)
	if err != nil {
		return msgsync.RetrievalQuery{}, fmt.Errorf("limit: %w", err)
	}
	return msgsync.RetrievalQuery{
		Cutoff:    cutoff,
		Page:      page,
		Limit:     min(limit, MaxQueryLimit),
		ChannelID: strings.TrimSpace(v.Get("channelId")),
	}, nil
}

func positiveInt(raw string, def int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errors.New("must be a positive integer")
	}
	return n, nil
}

func statusFor(k msgsync.Kind) int {
	switch k {
	case msgsync.KindValidation:
		return http.StatusBadRequest
	case msgsync.KindTransport, msgsync.KindNotFound, msgsync.KindResolution:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
