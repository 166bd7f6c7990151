// Package api adapts the teacher's job-queue HTTP surface (internal/api) to
// the extraction pipeline: POST /jobs starts an async extract→decode→
// transform run, GET /jobs/{id} reports its state, DELETE /jobs/{id}
// cancels it.
package api

import (
	"sync"
	"time"
)

// JobStatus is the lifecycle state of a submitted extraction job.
type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// JobRequest is the POST /jobs request body: the ethereum_node, contracts,
// block_range and extraction sections of the document config.Load reads
// from disk. Output filters, retry settings and the worker count are not
// part of the request; buildConfigFromRequest sets them.
type JobRequest struct {
	EthereumNode struct {
		Protocol string `json:"protocol"`
		Host     string `json:"host"`
		Port     string `json:"port"`
	} `json:"ethereum_node"`
	Contracts struct {
		DApp    []string `json:"dapp"`
		NonDApp []string `json:"non_dapp"`
	} `json:"contracts"`
	BlockRange struct {
		MinBlock uint64 `json:"min_block"`
		MaxBlock uint64 `json:"max_block"`
	} `json:"block_range"`
	Extraction struct {
		NormalTransactions   bool   `json:"normal_transactions"`
		InternalTransactions bool   `json:"internal_transactions"`
		TransactionsByEvents bool   `json:"transactions_by_events"`
		EtherscanAPIKey      string `json:"etherscan_api_key"`
	} `json:"extraction"`
}

// Job is the server-side state of one submitted request.
type Job struct {
	ID        string
	CreatedAt time.Time
	Cancel    func()

	mu     sync.Mutex
	status JobStatus
	errMsg string
}

// JobView is the JSON-serializable snapshot returned by GET /jobs/{id}.
type JobView struct {
	ID        string    `json:"id"`
	Status    JobStatus `json:"status"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (j *Job) setStatus(status JobStatus, errMsg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = status
	j.errMsg = errMsg
}

func (j *Job) snapshot() JobView {
	j.mu.Lock()
	defer j.mu.Unlock()
	return JobView{ID: j.ID, Status: j.status, Error: j.errMsg, CreatedAt: j.CreatedAt}
}
