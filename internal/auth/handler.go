package auth

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/phoneproof/phone_proof/internal/identity"
	"github.com/phoneproof/phone_proof/internal/vault"
	"github.com/phoneproof/phone_proof/internal/verify"
)

// Handler exposes the authentication and ban endpoints.
type Handler struct {
	svc    *Service
	tokens *TokenIssuer
}

// NewHandler builds the HTTP handler.
func NewHandler(svc *Service, tokens *TokenIssuer) *Handler {
	return &Handler{svc: svc, tokens: tokens}
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
}

// Register creates an account and returns the verification request id the
// user must confirm.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	requestID, err := h.svc.Register(c.UserContext(), req.Username, req.Password, req.Phone)
	if err != nil {
		return statusError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"request_id": requestID})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login checks the password and starts a login verification; the session is
// only issued once the code comes back through Verify.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	requestID, err := h.svc.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return statusError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"request_id": requestID})
}

type verifyRequest struct {
	RequestID string `json:"request_id"`
	Code      string `json:"code"`
}

// Verify resolves an outstanding verification request. A successful login
// verification additionally issues a session token.
func (h *Handler) Verify(c *fiber.Ctx) error {
	var req verifyRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	outcome, err := h.svc.VerifyCode(c.UserContext(), req.RequestID, req.Code)
	if err != nil {
		return statusError(err)
	}

	if !outcome.Succeeded {
		return c.Status(http.StatusUnprocessableEntity).JSON(fiber.Map{
			"status":  "failed",
			"message": outcome.Message,
		})
	}

	body := fiber.Map{"status": "verified", "purpose": string(outcome.Purpose)}
	if outcome.Purpose == identity.PurposeLogin && h.tokens != nil {
		token, expiresIn, err := h.tokens.Issue(outcome.Username)
		if err != nil {
			return fiber.NewError(http.StatusInternalServerError, "session issuance failed")
		}
		body["access_token"] = token
		body["expires_in"] = expiresIn
	}
	return c.Status(http.StatusOK).JSON(body)
}

// Me returns the profile of the authenticated user.
func (h *Handler) Me(c *fiber.Ctx) error {
	username, _ := c.Locals("username").(string)
	if username == "" {
		return fiber.NewError(http.StatusUnauthorized, "not authenticated")
	}
	record, err := h.svc.GetProfile(c.UserContext(), username)
	if err != nil {
		return statusError(err)
	}
	return c.JSON(fiber.Map{
		"username":   record.Username,
		"verified":   record.Verified,
		"created_at": record.CreatedAt,
	})
}

type banRequest struct {
	Phone string `json:"phone"`
}

// Ban adds a phone number's fingerprint to the ban list.
func (h *Handler) Ban(c *fiber.Ctx) error {
	var req banRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.BanPhone(c.UserContext(), req.Phone); err != nil {
		return statusError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"status": "banned"})
}

// Unban removes a phone number's fingerprint from the ban list.
func (h *Handler) Unban(c *fiber.Ctx) error {
	var req banRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.UnbanPhone(c.UserContext(), req.Phone); err != nil {
		return statusError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": "unbanned"})
}

// CheckBan reports whether a phone number is currently banned.
func (h *Handler) CheckBan(c *fiber.Ctx) error {
	var req banRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	banned, err := h.svc.IsPhoneBanned(c.UserContext(), req.Phone)
	if err != nil {
		return statusError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"banned": banned})
}

func statusError(err error) *fiber.Error {
	switch {
	case errors.Is(err, ErrValidation):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrInvalidCredentials):
		return fiber.NewError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrBanned), errors.Is(err, ErrUnverified):
		return fiber.NewError(http.StatusForbidden, err.Error())
	case errors.Is(err, identity.ErrNotFound), errors.Is(err, verify.ErrStaleRequest):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, identity.ErrConflict):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, verify.ErrProvider):
		return fiber.NewError(http.StatusBadGateway, err.Error())
	case errors.Is(err, vault.ErrCorruptCredential):
		return fiber.NewError(http.StatusInternalServerError, "stored credential unreadable")
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
