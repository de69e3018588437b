package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/paddleapp/paddle/internal/domain/auctions"
	"github.com/paddleapp/paddle/internal/domain/players"
	"github.com/paddleapp/paddle/internal/domain/rooms"
	"github.com/paddleapp/paddle/internal/domain/users"
	"github.com/paddleapp/paddle/pkg/auth"
)

// Service interfaces consumed by the handler.
type UserService interface {
	Register(ctx context.Context, cmd users.RegisterCommand) (*users.User, error)
	Login(ctx context.Context, cmd users.LoginCommand) (*users.User, string, error)
}

type RoomService interface {
	CreateRoom(ctx context.Context, cmd rooms.CreateRoomCommand) (*rooms.Room, error)
	JoinRoom(ctx context.Context, cmd rooms.JoinRoomCommand) (*rooms.Room, error)
	GetRoom(ctx context.Context, id uuid.UUID) (*rooms.Room, error)
}

type PlayerService interface {
	CreatePlayer(ctx context.Context, cmd players.CreatePlayerCommand) (*players.Player, error)
}

type AuctionService interface {
	CreateAuction(ctx context.Context, cmd auctions.CreateAuctionCommand) (*auctions.Auction, error)
	GetAuction(ctx context.Context, id uuid.UUID) (*auctions.Auction, error)
	PlaceBid(ctx context.Context, cmd auctions.PlaceBidCommand) (*auctions.BidResult, error)
}

// Handler serves the REST surface.
type Handler struct {
	users    UserService
	rooms    RoomService
	players  PlayerService
	auctions AuctionService
}

// NewHandler creates the API handler.
func NewHandler(userSvc UserService, roomSvc RoomService, playerSvc PlayerService, auctionSvc AuctionService) *Handler {
	return &Handler{users: userSvc, rooms: roomSvc, players: playerSvc, auctions: auctionSvc}
}

// RegisterRoutes mounts all routes on the echo instance.
func (h *Handler) RegisterRoutes(e *echo.Echo, signer *auth.Signer) {
	e.GET("/health", h.health)

	e.POST("/api/auth/register", h.register)
	e.POST("/api/auth/login", h.login)

	authed := e.Group("/api", auth.Middleware(signer))
	authed.POST("/rooms", h.createRoom)
	authed.POST("/rooms/:id/join", h.joinRoom)
	authed.GET("/rooms/:id", h.getRoom)
	authed.POST("/players", h.createPlayer)
	authed.POST("/auctions", h.createAuction)
	authed.GET("/auctions/:id", h.getAuction)
	authed.POST("/auctions/:id/bids", h.placeBid)
}

func (h *Handler) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return reason(c, http.StatusBadRequest, "invalid_payload")
	}

	u, err := h.users.Register(c.Request().Context(), users.RegisterCommand{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, users.ErrUsernameTaken):
			return reason(c, http.StatusConflict, "username_taken")
		case errors.Is(err, users.ErrInvalidInput):
			return reason(c, http.StatusBadRequest, "invalid_payload")
		}
		return reason(c, http.StatusInternalServerError, "server_error")
	}
	return c.JSON(http.StatusCreated, userResponse(u))
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return reason(c, http.StatusBadRequest, "invalid_payload")
	}

	u, token, err := h.users.Login(c.Request().Context(), users.LoginCommand{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		return reason(c, http.StatusUnauthorized, "invalid_credentials")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"user":  userResponse(u),
		"token": token,
	})
}

type createRoomRequest struct {
	Name     string `json:"name"`
	Settings *struct {
		BidIncrementType   string `json:"bidIncrementType"`
		BidIncrementValue  int64  `json:"bidIncrementValue"`
		AuctionTimeSec     int    `json:"auctionTimeSec"`
		AntiSnipeWindowSec int    `json:"antiSnipeWindowSec"`
		AntiSnipeExtendSec int    `json:"antiSnipeExtendSec"`
		MaxPlayers         int    `json:"maxPlayersPerRoom"`
	} `json:"settings"`
}

func (h *Handler) createRoom(c echo.Context) error {
	var req createRoomRequest
	if err := c.Bind(&req); err != nil {
		return reason(c, http.StatusBadRequest, "invalid_payload")
	}

	cmd := rooms.CreateRoomCommand{
		Name:       req.Name,
		HostUserID: callerID(c),
	}
	if req.Settings != nil {
		cmd.Settings = &rooms.Settings{
			BidIncrementType:   auctions.IncrementType(req.Settings.BidIncrementType),
			BidIncrementValue:  req.Settings.BidIncrementValue,
			AuctionTimeSec:     req.Settings.AuctionTimeSec,
			AntiSnipeWindowSec: req.Settings.AntiSnipeWindowSec,
			AntiSnipeExtendSec: req.Settings.AntiSnipeExtendSec,
			MaxPlayers:         req.Settings.MaxPlayers,
		}
	}

	room, err := h.rooms.CreateRoom(c.Request().Context(), cmd)
	if err != nil {
		if errors.Is(err, rooms.ErrInvalidName) {
			return reason(c, http.StatusBadRequest, "invalid_payload")
		}
		return reason(c, http.StatusInternalServerError, "server_error")
	}
	return c.JSON(http.StatusCreated, room)
}

type joinRoomRequest struct {
	DisplayName string `json:"displayName"`
}

func (h *Handler) joinRoom(c echo.Context) error {
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return reason(c, http.StatusBadRequest, "invalid_room_id")
	}
	var req joinRoomRequest
	if err := c.Bind(&req); err != nil {
		return reason(c, http.StatusBadRequest, "invalid_payload")
	}

	room, err := h.rooms.JoinRoom(c.Request().Context(), rooms.JoinRoomCommand{
		RoomID:      roomID,
		UserID:      callerID(c),
		DisplayName: req.DisplayName,
	})
	if err != nil {
		switch {
		case errors.Is(err, rooms.ErrRoomNotFound):
			return reason(c, http.StatusNotFound, "room_not_found")
		case errors.Is(err, rooms.ErrRoomFull):
			return reason(c, http.StatusConflict, "room_full")
		}
		return reason(c, http.StatusInternalServerError, "server_error")
	}
	return c.JSON(http.StatusOK, room)
}

func (h *Handler) getRoom(c echo.Context) error {
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return reason(c, http.StatusBadRequest, "invalid_room_id")
	}
	room, err := h.rooms.GetRoom(c.Request().Context(), roomID)
	if err != nil {
		if errors.Is(err, rooms.ErrRoomNotFound) {
			return reason(c, http.StatusNotFound, "room_not_found")
		}
		return reason(c, http.StatusInternalServerError, "server_error")
	}
	return c.JSON(http.StatusOK, room)
}

type createPlayerRequest struct {
	Name        string `json:"name"`
	Position    string `json:"position"`
	Club        string `json:"club"`
	SkillRating int    `json:"skillRating"`
	BaseValue   int64  `json:"baseValue"`
	Rarity      string `json:"rarity"`
	ImageURL    string `json:"imageUrl"`
}

func (h *Handler) createPlayer(c echo.Context) error {
	var req createPlayerRequest
	if err := c.Bind(&req); err != nil {
		return reason(c, http.StatusBadRequest, "invalid_payload")
	}

	p, err := h.players.CreatePlayer(c.Request().Context(), players.CreatePlayerCommand{
		Name:        req.Name,
		Position:    req.Position,
		Club:        req.Club,
		SkillRating: req.SkillRating,
		BaseValue:   req.BaseValue,
		Rarity:      players.Rarity(req.Rarity),
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		if errors.Is(err, players.ErrInvalidName) {
			return reason(c, http.StatusBadRequest, "invalid_payload")
		}
		return reason(c, http.StatusInternalServerError, "server_error")
	}
	return c.JSON(http.StatusCreated, p)
}

type createAuctionRequest struct {
	RoomID       string `json:"roomId"`
	PlayerID     string `json:"playerId"`
	DurationSec  int    `json:"durationSec"`
	ReservePrice int64  `json:"reservePrice"`
}

func (h *Handler) createAuction(c echo.Context) error {
	var req createAuctionRequest
	if err := c.Bind(&req); err != nil {
		return reason(c, http.StatusBadRequest, "invalid_payload")
	}
	roomID, err := uuid.Parse(req.RoomID)
	if err != nil {
		return reason(c, http.StatusBadRequest, "invalid_room_id")
	}
	playerID, err := uuid.Parse(req.PlayerID)
	if err != nil {
		return reason(c, http.StatusBadRequest, "invalid_player_id")
	}

	a, err := h.auctions.CreateAuction(c.Request().Context(), auctions.CreateAuctionCommand{
		RoomID:       roomID,
		PlayerID:     playerID,
		Duration:     time.Duration(req.DurationSec) * time.Second,
		ReservePrice: req.ReservePrice,
	})
	if err != nil {
		return reason(c, http.StatusInternalServerError, "server_error")
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) getAuction(c echo.Context) error {
	auctionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return reason(c, http.StatusBadRequest, "invalid_auction_id")
	}
	a, err := h.auctions.GetAuction(c.Request().Context(), auctionID)
	if err != nil {
		if errors.Is(err, auctions.ErrAuctionNotFound) {
			return reason(c, http.StatusNotFound, "auction_not_found")
		}
		return reason(c, http.StatusInternalServerError, "server_error")
	}
	return c.JSON(http.StatusOK, a)
}

type placeBidRequest struct {
	Amount int64 `json:"amount"`
}

func (h *Handler) placeBid(c echo.Context) error {
	ctx := c.Request().Context()
	auctionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return reason(c, http.StatusBadRequest, "invalid_auction_id")
	}
	var req placeBidRequest
	if err := c.Bind(&req); err != nil {
		return reason(c, http.StatusBadRequest, "invalid_payload")
	}

	// Room rules travel with the bid so admission never needs a room
	// lookup under the lock.
	rules, err := h.bidRules(ctx, auctionID)
	if err != nil {
		if errors.Is(err, auctions.ErrAuctionNotFound) {
			return reason(c, http.StatusNotFound, "auction_not_found")
		}
		return reason(c, http.StatusInternalServerError, "server_error")
	}

	result, err := h.auctions.PlaceBid(ctx, auctions.PlaceBidCommand{
		AuctionID: auctionID,
		BidderID:  callerID(c),
		Amount:    req.Amount,
		Rules:     rules,
	})
	if err != nil {
		var tooLow *auctions.BidTooLowError
		switch {
		case errors.As(err, &tooLow):
			return c.JSON(http.StatusUnprocessableEntity, map[string]any{
				"reason":     "bid_too_low",
				"minNextBid": tooLow.MinNext,
			})
		case errors.Is(err, auctions.ErrLockUnavailable):
			return reason(c, http.StatusServiceUnavailable, "lock_unavailable")
		case errors.Is(err, auctions.ErrAuctionNotFound):
			return reason(c, http.StatusNotFound, "auction_not_found")
		case errors.Is(err, auctions.ErrAuctionNotRunning):
			return reason(c, http.StatusConflict, "auction_not_running")
		case errors.Is(err, auctions.ErrAuctionExpired):
			return reason(c, http.StatusConflict, "auction_ended")
		case errors.Is(err, auctions.ErrBidderNotFound):
			return reason(c, http.StatusNotFound, "bidder_not_found")
		case errors.Is(err, auctions.ErrInsufficientBalance):
			return reason(c, http.StatusUnprocessableEntity, "insufficient_balance")
		}
		return reason(c, http.StatusInternalServerError, "server_error")
	}

	return c.JSON(http.StatusOK, map[string]any{
		"auctionId": result.AuctionID,
		"highestBid": map[string]any{
			"userId":    result.HighestBid.BidderID,
			"amount":    result.HighestBid.Amount,
			"timestamp": result.HighestBid.PlacedAt.UnixMilli(),
		},
		"timeLeft": result.TimeLeftSec,
	})
}

func (h *Handler) bidRules(ctx context.Context, auctionID uuid.UUID) (*auctions.BidRules, error) {
	a, err := h.auctions.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	room, err := h.rooms.GetRoom(ctx, a.RoomID)
	if err != nil {
		if errors.Is(err, rooms.ErrRoomNotFound) {
			// Room gone: fall back to process defaults.
			return nil, nil
		}
		return nil, err
	}
	return room.Settings.BidRules(), nil
}

func callerID(c echo.Context) uuid.UUID {
	if id, ok := c.Get(auth.UserIDKey).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

func reason(c echo.Context, status int, why string) error {
	return c.JSON(status, map[string]string{"reason": why})
}

func userResponse(u *users.User) map[string]any {
	return map[string]any{
		"id":       u.ID,
		"username": u.Username,
		"email":    u.Email,
		"balance":  u.Balance,
	}
}
