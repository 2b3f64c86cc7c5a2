package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/caseline/messenger-intake/internal/repository"
	"github.com/caseline/messenger-intake/pkg/util/errorutil"
)

// CasesHandler exposes stored cases for internal review tooling.
type CasesHandler struct {
	cases repository.CaseRepository
}

// NewCasesHandler returns a new handler instance.
func NewCasesHandler(cases repository.CaseRepository) *CasesHandler {
	return &CasesHandler{cases: cases}
}

// List returns recent cases, newest first.
func (h *CasesHandler) List(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	offset := c.QueryInt("offset", 0)

	cases, err := h.cases.List(c.UserContext(), limit, offset)
	if err != nil {
		return errorutil.NewPersistenceError(err)
	}
	return c.JSON(fiber.Map{"cases": cases, "count": len(cases)})
}

// GetByID returns one case.
func (h *CasesHandler) GetByID(c *fiber.Ctx) error {
	id := c.Params("id")
	found, err := h.cases.GetByID(c.UserContext(), id)
	if err != nil {
		if errorutil.IsCode(err, errorutil.CodeNotFound) {
			return err
		}
		return errorutil.NewNotFound("case", map[string]any{"id": id})
	}
	return c.JSON(found)
}

// Statistics returns aggregate counts over stored cases.
func (h *CasesHandler) Statistics(c *fiber.Ctx) error {
	stats, err := h.cases.Statistics(c.UserContext())
	if err != nil {
		return errorutil.NewPersistenceError(err)
	}
	return c.JSON(stats)
}
