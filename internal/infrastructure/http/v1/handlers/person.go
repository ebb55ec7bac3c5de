package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"txkit/internal/domain/person"
	"txkit/internal/infrastructure/http/v1/dto"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// PersonHandler serves the person resource over a transactional DAO.
type PersonHandler struct {
	*BaseHandler
	dao person.DAO
}

// NewPersonHandler creates a new person handler.
func NewPersonHandler(base *BaseHandler, dao person.DAO) *PersonHandler {
	return &PersonHandler{BaseHandler: base, dao: dao}
}

// Create handles POST /persons
func (h *PersonHandler) Create(c *gin.Context) {
	var req dto.CreatePersonRequest
	if !h.BindJSON(c, &req) {
		return
	}

	p := req.ToEntity()
	if err := p.Validate(); err != nil {
		h.Error(c, err)
		return
	}
	if err := h.dao.Save(c.Request.Context(), p); err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromPerson(p))
}

// Import handles POST /persons/import
func (h *PersonHandler) Import(c *gin.Context) {
	var req dto.ImportPersonsRequest
	if !h.BindJSON(c, &req) {
		return
	}

	persons := make([]person.Person, 0, len(req.Items))
	for i := range req.Items {
		p := req.Items[i].ToEntity()
		if err := p.Validate(); err != nil {
			h.Error(c, err)
			return
		}
		persons = append(persons, *p)
	}

	n, err := h.dao.Import(c.Request.Context(), persons)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"imported": n})
}

// Get handles GET /persons/:id
func (h *PersonHandler) Get(c *gin.Context) {
	personID, ok := h.ParseID(c)
	if !ok {
		return
	}

	p, err := h.dao.Get(c.Request.Context(), personID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromPerson(p))
}

// List handles GET /persons?offset=&limit=
func (h *PersonHandler) List(c *gin.Context) {
	offset := max(h.ParseIntQuery(c, "offset", 0), 0)
	limit := h.ParseIntQuery(c, "limit", defaultPageSize)
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}

	persons, err := h.dao.List(c.Request.Context(), offset, limit)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.PersonResponse, 0, len(persons))
	for i := range persons {
		items = append(items, dto.FromPerson(&persons[i]))
	}
	c.JSON(http.StatusOK, dto.ListResponse[dto.PersonResponse]{Items: items, Offset: offset, Limit: limit})
}

// Delete handles DELETE /persons/:id
func (h *PersonHandler) Delete(c *gin.Context) {
	personID, ok := h.ParseID(c)
	if !ok {
		return
	}

	if err := h.dao.Delete(c.Request.Context(), personID); err != nil {
		h.Error(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
