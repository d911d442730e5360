package controllers

import (
	"bufio"
	"context"
	"errors"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/luismedel/quiu/internal/channel"
	"github.com/luismedel/quiu/internal/logstore"
	"github.com/luismedel/quiu/internal/runtime"
	"github.com/luismedel/quiu/internal/wal"
	logpkg "github.com/luismedel/quiu/pkg/log"
)

// NoWaitHeader selects fire-and-forget appends when set to "1".
const NoWaitHeader = "X-Quiu-NoWait"

// maxLineBytes bounds a single record in an append body.
const maxLineBytes = 16 << 20

// ChannelsController serves the data plane: batch append and offset reads.
//
// Appends go through the shared write-ahead queue when one is configured and
// straight to the channel store otherwise.
type ChannelsController struct {
	rt            *runtime.Runtime
	wal           *wal.Queue[channel.Entry]
	commitTimeout time.Duration
	log           logpkg.Logger
}

// NewChannelsController creates the data plane controller. q may be nil.
func NewChannelsController(rt *runtime.Runtime, q *wal.Queue[channel.Entry], commitTimeout time.Duration, logger logpkg.Logger) *ChannelsController {
	if commitTimeout <= 0 {
		commitTimeout = 30 * time.Second
	}
	return &ChannelsController{
		rt:            rt,
		wal:           q,
		commitTimeout: commitTimeout,
		log:           logger.WithComponent("http.channels"),
	}
}

// RegisterRoutes registers the data plane routes.
func (c *ChannelsController) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/channel/{guid}", c.handleAppend).Methods(http.MethodPost)
	r.HandleFunc("/channel/{guid}/{offset}", c.handleFetch).Methods(http.MethodGet)
	r.HandleFunc("/channel/{guid}/{offset}/{count}", c.handleFetchRange).Methods(http.MethodGet)
}

func (c *ChannelsController) lookup(w http.ResponseWriter, r *http.Request) (*channel.Channel, bool) {
	id, ok := guidVar(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid guid")
		return nil, false
	}
	ch, ok := c.rt.GetChannel(id)
	if !ok {
		writeError(w, http.StatusNotFound, "channel not found")
		return nil, false
	}
	return ch, true
}

// handleAppend appends each body line as one record.
//
// Responds 201 when every processed line is committed, 202 when some are
// still pending (no-wait mode or commit timeout) and 500 with partial counts
// when a write fails.
func (c *ChannelsController) handleAppend(w http.ResponseWriter, r *http.Request) {
	ch, ok := c.lookup(w, r)
	if !ok {
		return
	}
	wait := r.Header.Get(NoWaitHeader) != "1"

	sc := bufio.NewScanner(r.Body)
	sc.Buffer(make([]byte, 0, 64<<10), maxLineBytes)

	var (
		resp appendResp
		err  error
	)
	if c.wal == nil {
		resp, err = c.appendDirect(r.Context(), ch, sc)
	} else {
		resp, err = c.appendQueued(r.Context(), ch, sc, wait)
	}

	status := http.StatusCreated
	switch {
	case errors.Is(err, wal.ErrNotRunning):
		status = http.StatusServiceUnavailable
	case err != nil:
		status = http.StatusInternalServerError
	case resp.Processed != resp.Commited:
		status = http.StatusAccepted
	}
	if err != nil {
		resp.Error, resp.Message = true, err.Error()
		c.log.Warn("append failed", logpkg.Str("channel", ch.ID().String()),
			logpkg.Int("processed", resp.Processed), logpkg.Int("commited", resp.Commited), logpkg.Err(err))
	}
	writeStatusJSON(w, status, resp)
}

func (c *ChannelsController) appendDirect(ctx context.Context, ch *channel.Channel, sc *bufio.Scanner) (appendResp, error) {
	var resp appendResp
	for sc.Scan() {
		if _, err := ch.Append(ctx, copyLine(sc.Bytes())); err != nil {
			return resp, err
		}
		resp.Processed++
		resp.Commited++
	}
	return resp, sc.Err()
}

func (c *ChannelsController) appendQueued(ctx context.Context, ch *channel.Channel, sc *bufio.Scanner, wait bool) (appendResp, error) {
	var (
		resp    appendResp
		pending []*wal.Completion
		failure error
	)
	for sc.Scan() {
		comp, err := c.wal.Enqueue(channel.Entry{Channel: ch, Payload: copyLine(sc.Bytes())}, wait)
		if err != nil {
			failure = err
			break
		}
		resp.Processed++
		if comp != nil {
			pending = append(pending, comp)
		}
	}
	if failure == nil {
		failure = sc.Err()
	}
	if len(pending) == 0 {
		return resp, failure
	}

	wctx, cancel := context.WithTimeout(ctx, c.commitTimeout)
	defer cancel()
	for i, comp := range pending {
		err := comp.Wait(wctx)
		if err == nil {
			resp.Commited++
			continue
		}
		if wctx.Err() != nil && !isDone(comp) {
			// Out of time; the rest stay queued. Count whatever already landed.
			for _, rest := range pending[i+1:] {
				if isDone(rest) && rest.Err() == nil {
					resp.Commited++
				}
			}
			break
		}
		if failure == nil {
			failure = err
		}
	}
	return resp, failure
}

func isDone(c *wal.Completion) bool {
	select {
	case <-c.Done():
		return true
	default:
		return false
	}
}

func copyLine(b []byte) []byte { return append([]byte(nil), b...) }

// handleFetch returns one record.
func (c *ChannelsController) handleFetch(w http.ResponseWriter, r *http.Request) {
	offset, ok := int64Var(r, "offset")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid offset")
		return
	}
	ch, ok := c.lookup(w, r)
	if !ok {
		return
	}
	rec, err := ch.Fetch(r.Context(), offset)
	if err != nil {
		if errors.Is(err, logstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, "offset not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, toRecordResp(rec))
}

// handleFetchRange streams up to count contiguous records as newline
// delimited JSON. An optional ?filter= CEL expression drops non-matching
// records after the range is read.
func (c *ChannelsController) handleFetchRange(w http.ResponseWriter, r *http.Request) {
	offset, ok := int64Var(r, "offset")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid offset")
		return
	}
	count, ok := int64Var(r, "count")
	if !ok || count > int64(^uint32(0)>>1) {
		writeError(w, http.StatusBadRequest, "invalid count")
		return
	}
	filter, err := newCELFilter(r.URL.Query().Get("filter"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid filter: "+err.Error())
		return
	}
	ch, ok := c.lookup(w, r)
	if !ok {
		return
	}
	recs, err := ch.FetchRange(r.Context(), offset, int(count))
	if err != nil && len(recs) == 0 {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err != nil {
		c.log.Warn("range read truncated", logpkg.Str("channel", ch.ID().String()), logpkg.Err(err))
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)
	now := time.Now()
	for _, rec := range recs {
		if !filter.Eval(rec, now) {
			continue
		}
		if err := enc.Encode(toRecordResp(rec)); err != nil {
			return
		}
	}
}
