package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"dapp-trace-extractor/internal/abi"
	"dapp-trace-extractor/internal/assemble"
	"dapp-trace-extractor/internal/config"
	"dapp-trace-extractor/internal/decode"
	"dapp-trace-extractor/internal/explorer"
	"dapp-trace-extractor/internal/node"
	"dapp-trace-extractor/internal/pipeline"
	"dapp-trace-extractor/internal/sink"
)

// Server exposes the extraction pipeline as an async job queue over HTTP,
// adapted from the teacher's internal/api.Server.
type Server struct {
	mu   sync.Mutex
	jobs map[string]*Job
	mux  *http.ServeMux
}

func NewServer() *Server {
	s := &Server{jobs: make(map[string]*Job), mux: http.NewServeMux()}
	s.mux.HandleFunc("/jobs", s.withMiddleware(s.handleJobs))
	s.mux.HandleFunc("/jobs/", s.withMiddleware(s.handleJobByID))
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// withMiddleware applies request logging and panic recovery, the way the
// teacher's handlers.go wraps every route.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logrus.Errorf("panic handling %s %s: %v", r.Method, r.URL.Path, rec)
				writeError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		start := time.Now()
		next(w, r)
		logrus.Infof("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	}
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.createJob(w, r)
}

func (s *Server) runJob(job *Job, cfg *config.Config, jobCtx context.Context) {
	job.setStatus(JobRunning, "")

	nodeClient, err := node.Dial(jobCtx, cfg.NodeURL(), cfg.Retry.Attempts, time.Duration(cfg.Retry.DelayMS)*time.Millisecond)
	if err != nil {
		job.setStatus(JobFailed, err.Error())
		return
	}
	explorerClient := explorer.New(cfg.Extraction.EtherscanAPIKey, cfg.Retry.Attempts, time.Duration(cfg.Retry.DelayMS)*time.Millisecond)

	registry, err := abi.New(explorerClient, 4096)
	if err != nil {
		job.setStatus(JobFailed, err.Error())
		return
	}
	fallback, err := abi.FallbackChain("")
	if err != nil {
		job.setStatus(JobFailed, err.Error())
		return
	}

	eventDec := decode.NewEventDecoder(fallback)
	callDec := decode.NewCallDecoder(fallback)
	assembler := assemble.New(cfg.Output.DApp, cfg.Output.NonDApp)
	out := sink.NewMemorySink()

	pctx := pipeline.New(cfg, nodeClient, explorerClient, registry, eventDec, callDec, assembler, out)

	if err := pctx.Run(jobCtx); err != nil {
		if jobCtx.Err() != nil {
			job.setStatus(JobCancelled, "")
			return
		}
		job.setStatus(JobFailed, err.Error())
		return
	}
	job.setStatus(JobDone, "")
}
