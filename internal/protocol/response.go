package protocol

import (
	"encoding/gob"
	"time"

	"github.com/ahnlich/ahnlich-db/internal/metadata"
)

// Response is the closed set of successful result shapes the executor can
// produce, mirroring the upstream ServerResponse enum generalized to the
// richer Query set above.
type Response interface {
	isResponse()
}

// Unit carries no data; it acknowledges an operation with no natural
// return value (CreateStore, ShutdownServer, Close).
type Unit struct{}

// Count carries a single removed/created item count (DropStore, DelKey,
// DelPred, CreatePredIndex, DropPredIndex, CreateNonLinearIndex,
// DropNonLinearIndex).
type Count struct {
	N uint64
}

// SetResult reports how many records were freshly inserted versus how
// many existing records had their metadata replaced.
type SetResult struct {
	Inserted uint64
	Updated  uint64
}

// RecordList carries the (vector, metadata) pairs returned by GetKey and
// GetPred.
type RecordList struct {
	Records []Record
}

// SimResult is one scored neighbor in a GetSimN response. Score's
// direction depends on the algorithm: Cosine/Dot are higher-is-better,
// Euclidean is lower-is-better, but SimResultList is always returned
// sorted best-first regardless of which convention produced it.
type SimResult struct {
	Vector   []float32
	Metadata metadata.Map
	Score    float32
}

// SimResultList carries the best-first ranked neighbors from GetSimN.
type SimResultList struct {
	Results []SimResult
}

// StoreInfo summarizes one store for ListStores. PredicateKeys and
// NonLinearIndexes are reported separately rather than merged into one
// generic "indexes" list, supplemented from the upstream richer
// StoreInfo shape.
type StoreInfo struct {
	Name             string
	Dimension        uint64
	Length           uint64
	SizeBytes        uint64
	PredicateKeys    []metadata.Key
	NonLinearIndexes []Algorithm
}

// StoreInfoList carries the ListStores response.
type StoreInfoList struct {
	Stores []StoreInfo
}

// ServerInfo answers InfoServer.
type ServerInfo struct {
	Version         string
	Type            string
	Uptime          time.Duration
	ConnectedClients uint64
}

// ConnectedClient identifies one live session by its stable remote
// address.
type ConnectedClient struct {
	Address     string
	ConnectedAt time.Time
}

// ClientList answers ListClients.
type ClientList struct {
	Clients []ConnectedClient
}

func (Unit) isResponse()          {}
func (Count) isResponse()         {}
func (SetResult) isResponse()     {}
func (RecordList) isResponse()    {}
func (SimResultList) isResponse() {}
func (StoreInfoList) isResponse() {}
func (ServerInfo) isResponse()    {}
func (ClientList) isResponse()    {}

// Result is one request's outcome: exactly one of Response or Err is set.
// Mirrors the upstream Result<ServerResponse, String> per-entry shape.
type Result struct {
	Response Response
	Err      string
}

// Ok builds a successful Result.
func Ok(r Response) Result { return Result{Response: r} }

// Error builds a failed Result carrying a human-readable message.
func Error(msg string) Result { return Result{Err: msg} }

// IsErr reports whether this result is a failure.
func (r Result) IsErr() bool { return r.Err != "" }

// ResultBatch is the decoded payload of a response frame: one Result per
// Query in the corresponding request Batch, in the same order.
type ResultBatch []Result

func init() {
	gob.Register(Unit{})
	gob.Register(Count{})
	gob.Register(SetResult{})
	gob.Register(RecordList{})
	gob.Register(SimResultList{})
	gob.Register(StoreInfoList{})
	gob.Register(ServerInfo{})
	gob.Register(ClientList{})
}
