package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nickyhof/orpheus"
	"github.com/nickyhof/orpheus/core"
	"github.com/nickyhof/orpheus/db"
	"github.com/sirupsen/logrus"
)

// Server is a TCP server that exposes the Orpheus engine.
type Server struct {
	listener   net.Listener
	instance   *orpheus.Instance
	identity   core.Identity
	authConfig *AuthConfig
	logger     *logrus.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer creates a server acting as identity for unauthenticated
// connections. A non-nil auth makes AUTH mandatory before any request.
func NewServer(instance *orpheus.Instance, identity core.Identity, auth *AuthConfig, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		instance:   instance,
		identity:   identity,
		authConfig: auth,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start begins listening for connections on the specified address.
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	s.listener = listener

	s.logger.WithField("addr", listener.Addr().String()).Info("server listening")

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Stop closes the listener, cancels running operations and waits for every
// connection to finish.
func (s *Server) Stop() error {
	s.cancel()
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	s.wg.Wait()
	return err
}

// Addr returns the server's listening address.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			s.logger.WithError(err).Warn("accept failed")
			continue
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	log := s.logger.WithFields(logrus.Fields{
		"conn":   uuid.NewString(),
		"remote": conn.RemoteAddr().String(),
	})
	log.Debug("client connected")

	// unblock the read below on shutdown
	stop := context.AfterFunc(s.ctx, func() { conn.SetReadDeadline(time.Now()) })
	defer stop()

	reader := bufio.NewReader(conn)
	state := &ConnectionState{}

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err != io.EOF && s.ctx.Err() == nil {
				log.WithError(err).Warn("read failed")
			}
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if lower := strings.ToLower(line); lower == "quit" || lower == "exit" {
			log.Debug("client disconnected")
			return
		}

		var response Response
		if isAuthCommand(line) {
			response = s.handleAuth(line, state)
			if response.Success {
				log = log.WithField("user", state.Identity().Principal())
			}
		} else {
			response = s.handleRequest(line, state)
		}

		data, err := EncodeResponse(response)
		if err != nil {
			log.WithError(err).Error("failed to encode response")
			continue
		}
		if _, err := conn.Write(data); err != nil {
			log.WithError(err).Warn("write failed")
			return
		}
	}
}

func (s *Server) handleRequest(line string, state *ConnectionState) Response {
	if s.authConfig != nil {
		if state.expired(time.Now()) {
			return Response{Success: false, Error: "token expired: authenticate again"}
		}
		if !state.IsAuthenticated() {
			return Response{Success: false, Error: errAuthRequired.Error()}
		}
	}

	req, err := DecodeRequest([]byte(line))
	if err != nil {
		return Response{Success: false, Error: fmt.Sprintf("invalid request: %v", err)}
	}

	identity := s.identity
	if state.IsAuthenticated() {
		identity = *state.Identity()
	}

	result, err := s.execute(s.ctx, s.instance.Engine(identity), req)
	if err != nil {
		return Response{Success: false, Error: err.Error()}
	}
	return encodeResult(result)
}

// execute dispatches one request to the engine.
func (s *Server) execute(ctx context.Context, engine *db.Engine, req Request) (db.Result, error) {
	start := time.Now()
	timed := func(result db.QueryResult) db.Result {
		result.ExecutionTimeSec = time.Since(start).Seconds()
		return result
	}

	switch strings.ToLower(req.Op) {
	case "init":
		return engine.InitDataset(ctx, db.InitRequest{
			Dataset:     req.Dataset,
			Table:       req.Table,
			File:        req.File,
			SchemaTable: req.SchemaTable,
			Attributes:  req.Attributes,
			Delimiter:   req.Delimiter,
			Header:      req.Header,
		})

	case "drop":
		return engine.DropDataset(ctx, req.Dataset)

	case "ls", "list":
		names, err := engine.ListDatasets(ctx)
		if err != nil {
			return nil, err
		}
		return timed(db.DatasetsResult(names)), nil

	case "show":
		info, err := engine.ShowDataset(ctx, req.Dataset)
		if err != nil {
			return nil, err
		}
		return timed(info.Result()), nil

	case "log":
		versions, err := engine.Versions(ctx, req.Dataset)
		if err != nil {
			return nil, err
		}
		if req.Ancestors > 0 {
			ancestors, err := engine.Ancestors(ctx, req.Dataset, req.Ancestors)
			if err != nil {
				return nil, err
			}
			versions = filterVersions(versions, ancestors)
		}
		return timed(db.VersionsResult(versions)), nil

	case "checkout", "clone":
		return engine.Checkout(ctx, db.CheckoutRequest{
			Dataset:   req.Dataset,
			Versions:  req.Versions,
			Table:     req.Table,
			File:      req.File,
			Delimiter: req.Delimiter,
			Header:    req.Header,

			IgnoreDuplicates: req.IgnoreDuplicates,
		})

	case "commit":
		return engine.Commit(ctx, db.CommitRequest{
			Table:     req.Table,
			File:      req.File,
			Message:   req.Message,
			Delimiter: req.Delimiter,
			Header:    req.Header,
		})

	case "clean":
		txn, err := engine.Clean(ctx)
		if err != nil {
			return nil, err
		}
		return db.CommitResult{Transaction: txn, ExecutionTimeSec: time.Since(start).Seconds()}, nil

	case "history":
		var since time.Time
		if req.Since != "" {
			d, err := time.ParseDuration(req.Since)
			if err != nil {
				return nil, &core.BadParametersError{Reason: "invalid since: " + err.Error()}
			}
			since = time.Now().Add(-d)
		}
		transactions, err := engine.History(ctx, since)
		if err != nil {
			return nil, err
		}
		return timed(db.HistoryResult(transactions)), nil

	case "":
		return nil, &core.BadParametersError{Reason: "op is required"}
	default:
		return nil, &core.NotImplementedError{Feature: "op " + req.Op}
	}
}

func filterVersions(versions []core.Version, keep []int64) []core.Version {
	wanted := make(map[int64]bool, len(keep))
	for _, vid := range keep {
		wanted[vid] = true
	}
	var out []core.Version
	for _, v := range versions {
		if wanted[v.ID] {
			out = append(out, v)
		}
	}
	return out
}

func encodeResult(result db.Result) Response {
	switch r := result.(type) {
	case db.QueryResult:
		data, _ := json.Marshal(QueryResponse{
			Columns: r.Columns,
			Data:    r.Data,
			Rows:    len(r.Data),
			TimeMs:  r.ExecutionTimeSec * 1000,
		})
		return Response{Success: true, Type: "query", Result: data}

	case db.CommitResult:
		data, _ := json.Marshal(CommitResponse{
			Dataset:        r.Dataset,
			Version:        r.Version,
			NoOp:           r.NoOp,
			Destination:    r.Destination,
			RowsAdded:      r.RowsAdded,
			RowsMatched:    r.RowsMatched,
			RecordsWritten: r.RecordsWritten,
			TablesCreated:  r.TablesCreated,
			TablesDeleted:  r.TablesDeleted,
			Transaction:    r.Transaction.Id,
			TimeMs:         r.ExecutionTimeSec * 1000,
		})
		return Response{Success: true, Type: "commit", Result: data}

	default:
		return Response{Success: false, Error: "unexpected result type"}
	}
}
