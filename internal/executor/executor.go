// Package executor implements the Query Executor: it interprets each
// request in a batch, dispatching to the relevant store, and assembles a
// results batch. Requests within a batch execute in order; a failure in
// one does not abort the batch, and batch atomicity is not guaranteed.
package executor

import (
	"context"

	"github.com/ahnlich/ahnlich-db/internal/protocol"
	"github.com/ahnlich/ahnlich-db/internal/storehandler"
)

// ClientRegistry is the subset of the connection layer's connected-client
// tracking the executor needs to serve ListClients/InfoServer.
type ClientRegistry interface {
	Snapshot() []protocol.ConnectedClient
	Count() uint64
}

// ShutdownRequester receives a shutdown signal from a ShutdownServer
// query.
type ShutdownRequester interface {
	RequestShutdown(reason string)
}

// Executor dispatches decoded queries against a Handler.
type Executor struct {
	handler  *storehandler.Handler
	clients  ClientRegistry
	shutdown ShutdownRequester
}

// New constructs an Executor bound to handler, a client registry for
// ListClients/InfoServer, and a shutdown requester for ShutdownServer.
func New(handler *storehandler.Handler, clients ClientRegistry, shutdown ShutdownRequester) *Executor {
	return &Executor{handler: handler, clients: clients, shutdown: shutdown}
}

// Execute runs every query in batch in order and returns a same-length
// result batch.
func (e *Executor) Execute(ctx context.Context, batch protocol.Batch) protocol.ResultBatch {
	results := make(protocol.ResultBatch, len(batch))
	for i, q := range batch {
		select {
		case <-ctx.Done():
			results[i] = protocol.Error("cancelled")
			continue
		default:
		}
		results[i] = e.dispatch(q)
	}
	return results
}

func (e *Executor) dispatch(q protocol.Query) protocol.Result {
	switch query := q.(type) {
	case protocol.CreateStore:
		err := e.handler.CreateStore(query.Store, int(query.Dimension), query.PredicateKeys, query.ErrorIfExists)
		e.handler.MarkDirtyIfMutating(true, err)
		return toResult(protocol.Unit{}, err)

	case protocol.DropStore:
		n, err := e.handler.DropStore(query.Store, query.ErrorIfNotExists)
		e.handler.MarkDirtyIfMutating(n > 0, err)
		return toResult(protocol.Count{N: n}, err)

	case protocol.Set:
		s, err := e.handler.Get(query.Store)
		if err != nil {
			return protocol.Error(err.Error())
		}
		inserted, updated, err := s.Set(query.Records)
		e.handler.MarkDirtyIfMutating(inserted+updated > 0, err)
		return toResult(protocol.SetResult{Inserted: inserted, Updated: updated}, err)

	case protocol.DelKey:
		s, err := e.handler.Get(query.Store)
		if err != nil {
			return protocol.Error(err.Error())
		}
		n, err := s.DelKey(query.Vectors)
		e.handler.MarkDirtyIfMutating(n > 0, err)
		return toResult(protocol.Count{N: n}, err)

	case protocol.DelPred:
		s, err := e.handler.Get(query.Store)
		if err != nil {
			return protocol.Error(err.Error())
		}
		n, err := s.DelPred(query.Condition)
		e.handler.MarkDirtyIfMutating(n > 0, err)
		return toResult(protocol.Count{N: n}, err)

	case protocol.GetKey:
		s, err := e.handler.Get(query.Store)
		if err != nil {
			return protocol.Error(err.Error())
		}
		records, err := s.GetKey(query.Vectors)
		return toResult(protocol.RecordList{Records: records}, err)

	case protocol.GetPred:
		s, err := e.handler.Get(query.Store)
		if err != nil {
			return protocol.Error(err.Error())
		}
		records, err := s.GetPred(query.Condition)
		return toResult(protocol.RecordList{Records: records}, err)

	case protocol.GetSimN:
		s, err := e.handler.Get(query.Store)
		if err != nil {
			return protocol.Error(err.Error())
		}
		results, err := s.GetSimN(query.Point, query.N, query.Algorithm, query.Condition)
		return toResult(protocol.SimResultList{Results: results}, err)

	case protocol.CreatePredIndex:
		s, err := e.handler.Get(query.Store)
		if err != nil {
			return protocol.Error(err.Error())
		}
		n := s.CreatePredIndex(query.Keys)
		e.handler.MarkDirtyIfMutating(n > 0, nil)
		return toResult(protocol.Count{N: n}, nil)

	case protocol.DropPredIndex:
		s, err := e.handler.Get(query.Store)
		if err != nil {
			return protocol.Error(err.Error())
		}
		n, err := s.DropPredIndex(query.Keys, query.ErrorIfMissing)
		e.handler.MarkDirtyIfMutating(n > 0, err)
		return toResult(protocol.Count{N: n}, err)

	case protocol.CreateNonLinearIndex:
		s, err := e.handler.Get(query.Store)
		if err != nil {
			return protocol.Error(err.Error())
		}
		n := s.CreateNonLinearIndex(query.Algorithms)
		e.handler.MarkDirtyIfMutating(n > 0, nil)
		return toResult(protocol.Count{N: n}, nil)

	case protocol.DropNonLinearIndex:
		s, err := e.handler.Get(query.Store)
		if err != nil {
			return protocol.Error(err.Error())
		}
		n, err := s.DropNonLinearIndex(query.Algorithms, query.ErrorIfMissing)
		e.handler.MarkDirtyIfMutating(n > 0, err)
		return toResult(protocol.Count{N: n}, err)

	case protocol.ListStores:
		return protocol.Ok(e.handler.ListStores())

	case protocol.InfoServer:
		var count uint64
		if e.clients != nil {
			count = e.clients.Count()
		}
		return protocol.Ok(e.handler.InfoServer(count))

	case protocol.ListClients:
		var clients []protocol.ConnectedClient
		if e.clients != nil {
			clients = e.clients.Snapshot()
		}
		return protocol.Ok(protocol.ClientList{Clients: clients})

	case protocol.ShutdownServer:
		if e.shutdown != nil {
			e.shutdown.RequestShutdown(query.Reason)
		}
		return protocol.Ok(protocol.Unit{})

	case protocol.Close:
		return protocol.Ok(protocol.Unit{})

	default:
		return protocol.Error("unsupported query")
	}
}

func toResult(resp protocol.Response, err error) protocol.Result {
	if err != nil {
		return protocol.Error(err.Error())
	}
	return protocol.Ok(resp)
}
