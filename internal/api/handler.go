package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/elliot-conan/mindwellness-chat/internal/crisis"
	"github.com/elliot-conan/mindwellness-chat/internal/domain"
	"github.com/elliot-conan/mindwellness-chat/internal/presence"
	"github.com/elliot-conan/mindwellness-chat/internal/repository"
	"github.com/elliot-conan/mindwellness-chat/internal/service"
)

type Handlers struct {
	messages      *repository.MessageRepository
	chat          *service.ChatService
	rooms         *service.RoomService
	profiles      *service.ProfileService
	notifications *service.NotificationService
	reactions     *service.ReactionService
	pres          *presence.Tracker
	log           *zap.SugaredLogger
}

func NewHandlers(
	messages *repository.MessageRepository,
	chat *service.ChatService,
	rooms *service.RoomService,
	profiles *service.ProfileService,
	notifications *service.NotificationService,
	reactions *service.ReactionService,
	pres *presence.Tracker,
	log *zap.SugaredLogger,
) *Handlers {
	return &Handlers{
		messages:      messages,
		chat:          chat,
		rooms:         rooms,
		profiles:      profiles,
		notifications: notifications,
		reactions:     reactions,
		pres:          pres,
		log:           log,
	}
}

func profileID(c *fiber.Ctx) string {
	id, _ := c.Locals("profile_id").(string)
	return id
}

func (h *Handlers) fail(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	case errors.Is(err, service.ErrNotParticipant),
		errors.Is(err, service.ErrNotDoctor):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, service.ErrNotPending),
		errors.Is(err, service.ErrNotInvitable),
		errors.Is(err, service.ErrEmptyMessage),
		errors.Is(err, service.ErrOwnReceipt),
		errors.Is(err, service.ErrUsernameRequired):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	default:
		h.log.Errorw("request failed", "path", c.Path(), "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
}

// --- profiles ---

func (h *Handlers) getMyProfile(c *fiber.Ctx) error {
	p, err := h.profiles.Get(c.Context(), profileID(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"data": p})
}

func (h *Handlers) getProfile(c *fiber.Ctx) error {
	p, err := h.profiles.Get(c.Context(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"data": p})
}

func (h *Handlers) updateMyProfile(c *fiber.Ctx) error {
	var body struct {
		Username  string `json:"username"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		AvatarURL string `json:"avatar_url"`
		Role      string `json:"role"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	p := &domain.Profile{
		ID:        profileID(c),
		Username:  body.Username,
		FirstName: body.FirstName,
		LastName:  body.LastName,
		AvatarURL: body.AvatarURL,
		Role:      domain.Role(body.Role),
	}
	if err := h.profiles.Update(c.Context(), p); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"data": p})
}

// --- rooms ---

func (h *Handlers) listRooms(c *fiber.Ctx) error {
	rooms, err := h.rooms.ListForProfile(c.Context(), profileID(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"data": rooms})
}

func (h *Handlers) listPublicRooms(c *fiber.Ctx) error {
	rooms, err := h.rooms.ListPublic(c.Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"data": rooms})
}

func (h *Handlers) createGroupRoom(c *fiber.Ctx) error {
	var body struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		IsPrivate   bool   `json:"is_private"`
	}
	if err := c.BodyParser(&body); err != nil || body.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name required"})
	}
	creator, err := h.profiles.Get(c.Context(), profileID(c))
	if err != nil {
		return h.fail(c, err)
	}
	room, err := h.rooms.CreateGroup(c.Context(), creator, body.Name, body.Description, body.IsPrivate)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": room})
}

func (h *Handlers) requestOneToOne(c *fiber.Ctx) error {
	var body struct {
		DoctorID string `json:"doctor_id"`
		Name     string `json:"name"`
	}
	if err := c.BodyParser(&body); err != nil || body.DoctorID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "doctor_id required"})
	}
	patient, err := h.profiles.Get(c.Context(), profileID(c))
	if err != nil {
		return h.fail(c, err)
	}
	room, err := h.rooms.RequestOneToOne(c.Context(), patient, body.DoctorID, body.Name)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": room})
}

func (h *Handlers) handleRequest(c *fiber.Ctx) error {
	var body struct {
		Accept bool `json:"accept"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	room, err := h.rooms.HandleRequest(c.Context(), c.Params("room_id"), profileID(c), body.Accept)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"data": room})
}

func (h *Handlers) joinPublicRoom(c *fiber.Ctx) error {
	room, err := h.rooms.JoinPublic(c.Context(), c.Params("room_id"), profileID(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"data": room})
}

func (h *Handlers) inviteToRoom(c *fiber.Ctx) error {
	var body struct {
		ProfileID string `json:"profile_id"`
	}
	if err := c.BodyParser(&body); err != nil || body.ProfileID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "profile_id required"})
	}
	inviter, err := h.profiles.Get(c.Context(), profileID(c))
	if err != nil {
		return h.fail(c, err)
	}
	room, err := h.rooms.Invite(c.Context(), inviter, c.Params("room_id"), body.ProfileID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"data": room})
}

// roomPresence lists the profiles with a live connection to the room.
func (h *Handlers) roomPresence(c *fiber.Ctx) error {
	roomID := c.Params("room_id")
	if _, err := h.rooms.Authorize(c.Context(), roomID, profileID(c)); err != nil {
		return h.fail(c, err)
	}
	ids, err := h.pres.Active(c.Context(), roomID)
	if err != nil {
		return h.fail(c, err)
	}
	if len(ids) == 0 {
		return c.JSON(fiber.Map{"data": []domain.Profile{}})
	}
	profiles, err := h.profiles.GetMany(c.Context(), ids)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"data": profiles})
}

// --- messages ---

func (h *Handlers) listMessages(c *fiber.Ctx) error {
	roomID := c.Params("room_id")
	if _, err := h.rooms.Authorize(c.Context(), roomID, profileID(c)); err != nil {
		return h.fail(c, err)
	}
	msgs, err := h.messages.History(c.Context(), roomID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"data": msgs})
}

// markDelivered and markRead are the REST fallback for clients without
// an open channel; live peers pick the change up from the next
// reconciliation pull. The chat service enforces that the caller is a
// room participant and not the message's author.
func (h *Handlers) markDelivered(c *fiber.Ctx) error {
	ts, err := h.chat.MarkDelivered(c.Context(), c.Params("msg_id"), profileID(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"delivered_at": ts})
}

func (h *Handlers) markRead(c *fiber.Ctx) error {
	ts, err := h.chat.MarkRead(c.Context(), c.Params("msg_id"), profileID(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"read_at": ts})
}

// --- notifications ---

func (h *Handlers) listNotifications(c *fiber.Ctx) error {
	limit := int64(c.QueryInt("limit", 20))
	items, err := h.notifications.List(c.Context(), profileID(c), limit)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"data": items})
}

func (h *Handlers) unreadCount(c *fiber.Ctx) error {
	n, err := h.notifications.UnreadCount(c.Context(), profileID(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"count": n})
}

func (h *Handlers) markNotificationRead(c *fiber.Ctx) error {
	if err := h.notifications.MarkRead(c.Context(), c.Params("id"), profileID(c)); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (h *Handlers) markAllNotificationsRead(c *fiber.Ctx) error {
	if err := h.notifications.MarkAllRead(c.Context(), profileID(c)); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

// --- reactions ---

func (h *Handlers) toggleReaction(c *fiber.Ctx) error {
	var body struct {
		Emoji string `json:"emoji"`
	}
	if err := c.BodyParser(&body); err != nil || body.Emoji == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "emoji required"})
	}
	set, err := h.reactions.Toggle(c.Context(), c.Params("msg_id"), profileID(c), body.Emoji)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"reacted": set})
}

func (h *Handlers) listReactions(c *fiber.Ctx) error {
	items, err := h.reactions.ListForMessage(c.Context(), c.Params("msg_id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"data": items})
}

func (h *Handlers) commonReactions(c *fiber.Ctx) error {
	items, err := h.reactions.CommonReactions(c.Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"data": items})
}

// --- crisis ---

func (h *Handlers) crisisResources(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": crisis.Resources()})
}
