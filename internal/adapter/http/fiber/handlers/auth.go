package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/seu-repo/drivethru-voice/internal/service/auth"
)

// TokenService issues and revokes API tokens.
type TokenService interface {
	GenerateToken(subject, role string, branchID int64) (string, error)
	RevokeToken(ctx context.Context, tokenID string) error
}

type AuthHandler struct {
	service TokenService
	log     *zap.Logger
}

func NewAuthHandler(service TokenService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		service: service,
		log:     log,
	}
}

type IssueTokenRequest struct {
	Subject  string `json:"subject"`
	Role     string `json:"role"`
	BranchID int64  `json:"branch_id"`
}

func claimsFrom(c *fiber.Ctx) *auth.Claims {
	claims, _ := c.Locals("claims").(*auth.Claims)
	return claims
}

// IssueToken lets an operator mint a token for a lane terminal. Operators
// scoped to a branch can only issue tokens for that branch.
func (h *AuthHandler) IssueToken(c *fiber.Ctx) error {
	caller := claimsFrom(c)
	if caller == nil || caller.Role != auth.RoleOperator {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Operator role required"})
	}

	var req IssueTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if strings.TrimSpace(req.Subject) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Subject is required"})
	}
	if req.Role == "" {
		req.Role = auth.RoleTerminal
	}
	if req.Role != auth.RoleTerminal && req.Role != auth.RoleOperator {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Unknown role"})
	}
	if caller.BranchID != 0 && req.BranchID != caller.BranchID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Branch outside caller scope"})
	}

	token, err := h.service.GenerateToken(req.Subject, req.Role, req.BranchID)
	if err != nil {
		h.log.Error("Failed to issue token", zap.String("subject", req.Subject), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to issue token"})
	}

	h.log.Info("Token issued",
		zap.String("issuer", caller.Subject),
		zap.String("subject", req.Subject),
		zap.String("role", req.Role),
		zap.Int64("branch_id", req.BranchID),
	)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"accessToken": token})
}

// Revoke invalidates the caller's own token.
func (h *AuthHandler) Revoke(c *fiber.Ctx) error {
	caller := claimsFrom(c)
	if caller == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}
	if err := h.service.RevokeToken(c.UserContext(), caller.ID); err != nil {
		h.log.Error("Failed to revoke token", zap.String("subject", caller.Subject), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to revoke token"})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	caller := claimsFrom(c)
	if caller == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}
	return c.JSON(fiber.Map{
		"subject":   caller.Subject,
		"role":      caller.Role,
		"branch_id": caller.BranchID,
	})
}
