package controllers

import (
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/luismedel/quiu/internal/runtime"
	logpkg "github.com/luismedel/quiu/pkg/log"
)

// AdminController manages the channel registry over HTTP.
type AdminController struct {
	rt  *runtime.Runtime
	log logpkg.Logger
}

// NewAdminController creates a new admin controller.
func NewAdminController(rt *runtime.Runtime, logger logpkg.Logger) *AdminController {
	return &AdminController{rt: rt, log: logger.WithComponent("http.admin")}
}

// RegisterRoutes registers the /admin routes.
func (c *AdminController) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/admin/channel/new", c.handleCreate).Methods(http.MethodPost)
	r.HandleFunc("/admin/channel/{guid}", c.handleDrop).Methods(http.MethodDelete)
	r.HandleFunc("/admin/channels", c.handleList).Methods(http.MethodGet)
}

// handleCreate creates a channel from an optional guid=&name= form. Creating
// an existing GUID is not an error.
func (c *AdminController) handleCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	id := uuid.Nil
	if s := strings.TrimSpace(r.PostForm.Get("guid")); s != "" {
		parsed, err := uuid.Parse(s)
		if err != nil || parsed == uuid.Nil {
			writeError(w, http.StatusBadRequest, "invalid guid")
			return
		}
		id = parsed
	}
	name := strings.TrimSpace(r.PostForm.Get("name"))
	if !runtime.ValidName(name) {
		writeError(w, http.StatusBadRequest, "invalid name")
		return
	}

	ch, err := c.rt.AddChannel(r.Context(), id, name)
	if err != nil {
		switch {
		case errors.Is(err, runtime.ErrShuttingDown):
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		case errors.Is(err, runtime.ErrInvalidName):
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		c.log.Error("create channel failed", logpkg.Err(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeStatusJSON(w, http.StatusCreated, createResp{GUID: ch.ID().String()})
}

func (c *AdminController) handleDrop(w http.ResponseWriter, r *http.Request) {
	id, ok := guidVar(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid guid")
		return
	}
	prune, err := parseBool(r.URL.Query().Get("prune"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid prune flag")
		return
	}
	ch, ok := c.rt.GetChannel(id)
	if !ok {
		writeError(w, http.StatusNotFound, "channel not found")
		return
	}
	if !c.rt.DropChannel(ch, prune) {
		if !prune {
			// Without prune the only failure is losing a race with another drop.
			writeError(w, http.StatusNotFound, "channel not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to drop channel")
		return
	}
	writeJSON(w, okResp{})
}

func (c *AdminController) handleList(w http.ResponseWriter, _ *http.Request) {
	chs := c.rt.Channels()
	out := channelsResp{Channels: make([]channelInfo, 0, len(chs))}
	for _, ch := range chs {
		out.Channels = append(out.Channels, channelInfo{
			GUID:       ch.ID().String(),
			Name:       ch.Name(),
			LastOffset: ch.LastOffset(),
		})
	}
	sort.Slice(out.Channels, func(i, j int) bool { return out.Channels[i].GUID < out.Channels[j].GUID })
	writeJSON(w, out)
}
