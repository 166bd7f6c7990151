package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"dapp-trace-extractor/internal/config"
)

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// createJob validates the request body via the same rules config.Validate
// applies to a disk-loaded config, so API-submitted jobs and CLI-driven runs
// reject malformed input identically.
func (s *Server) createJob(w http.ResponseWriter, r *http.Request) {
	var req JobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	cfg := buildConfigFromRequest(req)
	if err := config.Validate(cfg); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	jobCtx, cancel := context.WithCancel(context.Background())
	job := &Job{ID: uuid.NewString(), CreatedAt: time.Now(), Cancel: cancel}
	job.setStatus(JobPending, "")

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	go s.runJob(job, cfg, jobCtx)

	writeJSON(w, http.StatusAccepted, job.snapshot())
}

func buildConfigFromRequest(req JobRequest) *config.Config {
	cfg := &config.Config{}
	cfg.EthereumNode.Protocol = req.EthereumNode.Protocol
	cfg.EthereumNode.Host = req.EthereumNode.Host
	cfg.EthereumNode.Port = req.EthereumNode.Port
	cfg.Contracts.DApp = req.Contracts.DApp
	cfg.Contracts.NonDApp = req.Contracts.NonDApp
	cfg.BlockRange.MinBlock = req.BlockRange.MinBlock
	cfg.BlockRange.MaxBlock = req.BlockRange.MaxBlock
	cfg.Extraction.NormalTransactions = req.Extraction.NormalTransactions
	cfg.Extraction.InternalTransactions = req.Extraction.InternalTransactions
	cfg.Extraction.TransactionsByEvents = req.Extraction.TransactionsByEvents
	cfg.Extraction.EtherscanAPIKey = req.Extraction.EtherscanAPIKey
	cfg.Output.DApp.Events = true
	cfg.Output.DApp.Calls = true
	cfg.Output.DApp.Delegatecalls = true
	cfg.Output.DApp.ZeroValueCalls = true
	cfg.Output.DApp.Creations = true
	cfg.Retry.Attempts = 5
	cfg.Retry.DelayMS = 1500
	cfg.Workers = 4
	return cfg
}

func (s *Server) handleJobByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/jobs/")
	if id == "" {
		writeError(w, http.StatusNotFound, "job id required")
		return
	}

	s.mu.Lock()
	job, ok := s.jobs[id]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, job.snapshot())
	case http.MethodDelete:
		job.Cancel()
		writeJSON(w, http.StatusAccepted, job.snapshot())
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}
