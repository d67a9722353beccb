package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/lumenflow/portal/internal/live"
	"github.com/lumenflow/portal/internal/model"
	"github.com/lumenflow/portal/internal/service"
	"github.com/lumenflow/portal/internal/storage"
	"github.com/lumenflow/portal/internal/ui"
)

type DashboardHandler struct {
	projectService *service.ProjectService
	resolver       *storage.Resolver
	feed           live.Subscriber
}

func NewDashboardHandler(projectService *service.ProjectService, resolver *storage.Resolver, feed live.Subscriber) *DashboardHandler {
	return &DashboardHandler{
		projectService: projectService,
		resolver:       resolver,
		feed:           feed,
	}
}

func (h *DashboardHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := h.projectService.Dashboard(r.Context(), viewer(r))
	if err != nil {
		loadFailed(w, r, err)
		return
	}
	ui.JSON(w, http.StatusOK, dashboard)
}

func (h *DashboardHandler) DashboardEvents(w http.ResponseWriter, r *http.Request) {
	serveLive(w, r, h.feed, "dashboard", h.projectService.DashboardWatch)
}

func (h *DashboardHandler) Project(w http.ResponseWriter, r *http.Request) {
	detail, err := h.projectService.Detail(r.Context(), viewer(r), r.PathValue("id"))
	if err != nil {
		loadError(w, r, err)
		return
	}
	ui.JSON(w, http.StatusOK, detail)
}

func (h *DashboardHandler) ProjectEvents(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")
	serveLive(w, r, h.feed, "project", func(v service.Viewer) live.Config[*model.ProjectDetail] {
		return h.projectService.DetailWatch(v, projectID)
	})
}

func (h *DashboardHandler) Assets(w http.ResponseWriter, r *http.Request) {
	library, err := h.projectService.Library(r.Context(), viewer(r))
	if err != nil {
		loadFailed(w, r, err)
		return
	}
	ui.JSON(w, http.StatusOK, library)
}

func (h *DashboardHandler) AssetEvents(w http.ResponseWriter, r *http.Request) {
	serveLive(w, r, h.feed, "assets", h.projectService.LibraryWatch)
}

// Preview issues a fresh signed URL for viewing the asset inline.
func (h *DashboardHandler) Preview(w http.ResponseWriter, r *http.Request) {
	h.sign(w, r, h.resolver.Resolve)
}

// Download issues a fresh signed URL that saves the asset under its name.
func (h *DashboardHandler) Download(w http.ResponseWriter, r *http.Request) {
	h.sign(w, r, h.resolver.ResolveDownload)
}

func (h *DashboardHandler) sign(w http.ResponseWriter, r *http.Request, resolve func(context.Context, *model.Asset) *model.SignedURL) {
	asset, err := h.projectService.Asset(r.Context(), viewer(r), r.PathValue("id"))
	if err != nil {
		loadError(w, r, err)
		return
	}

	signed := resolve(r.Context(), asset)
	if signed == nil {
		slog.Warn("no signed url for asset", "asset_id", asset.ID)
		ui.Error(w, http.StatusBadGateway, "preview_unavailable", message(r, "preview.unavailable"))
		return
	}
	ui.JSON(w, http.StatusOK, signed)
}
