package controller

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/bassista/go_refresh/internal/repository"
)

// StoreSource lists the repositories by item type name.
type StoreSource interface {
	Stores() map[string]repository.Store
}

type RepositoryController struct {
	source StoreSource
}

func NewRepositoryController(source StoreSource) *RepositoryController {
	return &RepositoryController{source: source}
}

// ListRepositories returns every item type with its current item count.
func (rc *RepositoryController) ListRepositories(c *gin.Context) {
	stores := rc.source.Stores()
	names := make([]string, 0, len(stores))
	for name := range stores {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]gin.H, 0, len(names))
	for _, name := range names {
		out = append(out, gin.H{"type": name, "items": stores[name].Len()})
	}
	c.JSON(http.StatusOK, out)
}

// GetRepository returns a snapshot of all items of one type.
func (rc *RepositoryController) GetRepository(c *gin.Context) {
	itemType := c.Param("type")
	store, ok := rc.source.Stores()[itemType]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "repository not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"type":  itemType,
		"count": store.Len(),
		"items": store.Snapshot(),
	})
}
