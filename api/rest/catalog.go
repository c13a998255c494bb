package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mistveil/buildcalc/game/tree"
	"github.com/mistveil/buildcalc/resource"
)

// contextWithTimeout returns a short-lived context for best-effort cache
// work running outside a request.
func contextWithTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 2*time.Second)
}

// CatalogHandler serves the read-only catalogs to the UI layer.
type CatalogHandler struct {
	res  *resource.Loader
	tree *tree.Resolved
}

// NewCatalogHandler creates a CatalogHandler.
func NewCatalogHandler(res *resource.Loader, resolved *tree.Resolved) *CatalogHandler {
	return &CatalogHandler{res: res, tree: resolved}
}

// Skills handles GET /api/catalog/skills.
func (h *CatalogHandler) Skills(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"skills": h.res.Skills})
}

// Gems handles GET /api/catalog/gems.
func (h *CatalogHandler) Gems(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"gems": h.res.Gems})
}

// Tree handles GET /api/catalog/tree: a summary of the resolved tree, not
// the full node list (the render layer fetches the raw catalog itself).
func (h *CatalogHandler) Tree(c *gin.Context) {
	if h.tree == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "tree catalog not loaded"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"version":    h.tree.Version(),
		"node_count": h.tree.NodeCount(),
	})
}

// Nodes handles GET /api/catalog/tree/nodes: resolved node positions for a
// renderer that wants them precomputed.
func (h *CatalogHandler) Nodes(c *gin.Context) {
	if h.tree == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "tree catalog not loaded"})
		return
	}
	type nodeView struct {
		ID       int           `json:"id"`
		Name     string        `json:"name"`
		Pos      tree.Position `json:"pos"`
		Keystone bool          `json:"keystone,omitempty"`
		Notable  bool          `json:"notable,omitempty"`
		Mastery  bool          `json:"mastery,omitempty"`
		Stats    []string      `json:"stats,omitempty"`
	}
	ids := h.tree.NodeIDs()
	nodes := make([]nodeView, 0, len(ids))
	for _, id := range ids {
		n := h.tree.Node(id)
		nodes = append(nodes, nodeView{
			ID:       n.ID,
			Name:     n.Name,
			Pos:      n.Pos,
			Keystone: n.Keystone,
			Notable:  n.Notable,
			Mastery:  n.Mastery,
			Stats:    n.Stats,
		})
	}
	c.JSON(http.StatusOK, gin.H{"nodes": nodes})
}
