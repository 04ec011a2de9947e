package handlers

import (
	"net/http"
	"strconv"

	"shop-service/internal/catalog"

	"github.com/gin-gonic/gin"
)

func pageFromQuery(c *gin.Context) (catalog.Page, bool) {
	var p catalog.Page
	for _, q := range []struct {
		name string
		dst  *int
	}{{"page", &p.Page}, {"page_size", &p.PageSize}} {
		raw := c.Query(q.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			badRequest(c, "invalid_page", q.name+" must be a positive integer")
			return catalog.Page{}, false
		}
		*q.dst = n
	}
	return p, true
}

func (h *Handler) ListProducts(c *gin.Context) {
	page, ok := pageFromQuery(c)
	if !ok {
		return
	}
	list, err := h.catalog.Products(c.Request.Context(), page)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": list})
}

func (h *Handler) GetProduct(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	p, err := h.catalog.Product(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}
