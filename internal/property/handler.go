package property

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/pg-life/internal/account"
	"github.com/yourusername/pg-life/internal/apierr"
	"github.com/yourusername/pg-life/internal/auth"
	"github.com/yourusername/pg-life/internal/logging"
	"github.com/yourusername/pg-life/internal/observability"
)

// OwnerSummary は物件の所有者の概要です。
type OwnerSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// View はクライアントへ返す物件情報です。
type View struct {
	ID            string       `json:"id"`
	PropertyTitle string       `json:"propertyTitle"`
	Description   string       `json:"description"`
	Price         float64      `json:"price"`
	Location      string       `json:"location"`
	Images        []string     `json:"images"`
	Rating        float64      `json:"rating"`
	Owner         OwnerSummary `json:"owner"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

// Handler は /api/v1/property 配下のハンドラーです。
// すべてのルートは auth.Manager.RequireSession の後に置きます。
type Handler struct {
	repo     Repository
	accounts account.Directory
	logger   logging.Logger
	metrics  *observability.Metrics
}

// NewHandler は Handler を作成します。
func NewHandler(repo Repository, accounts account.Directory, logger logging.Logger, metrics *observability.Metrics) *Handler {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Handler{
		repo:     repo,
		accounts: accounts,
		logger:   logger,
		metrics:  metrics,
	}
}

// Register は物件登録のハンドラーです。所有者はリクエストした利用者です。
func (h *Handler) Register(c *gin.Context) {
	identity, ok := h.identity(c)
	if !ok {
		return
	}
	in, ok := h.bindInput(c)
	if !ok {
		return
	}

	p := &Property{Owner: identity.ID}
	in.apply(p)

	ctx := c.Request.Context()
	if err := h.repo.Create(ctx, p); err != nil {
		h.fail(c, "create", apierr.Internal(err, "Error registering property"))
		return
	}
	h.metrics.PropertyOp("create", "success")
	h.logger.Info(ctx, "property registered", "propertyId", p.ID, "owner", p.Owner)

	c.JSON(http.StatusCreated, gin.H{
		"message":  "Property registered successfully",
		"property": viewOf(p, OwnerSummary{ID: identity.ID, Name: identity.Name, Email: identity.Email}),
	})
}

// List は物件一覧のハンドラーです。
func (h *Handler) List(c *gin.Context) {
	if _, ok := h.identity(c); !ok {
		return
	}

	ctx := c.Request.Context()
	properties, err := h.repo.List(ctx)
	if err != nil {
		h.fail(c, "list", apierr.Internal(err, "Error fetching properties"))
		return
	}

	owners := make(map[string]OwnerSummary)
	views := make([]View, 0, len(properties))
	for _, p := range properties {
		owner, seen := owners[p.Owner]
		if !seen {
			if owner, err = h.ownerOf(ctx, p.Owner); err != nil {
				h.fail(c, "list", apierr.Internal(err, "Error fetching properties"))
				return
			}
			owners[p.Owner] = owner
		}
		views = append(views, viewOf(p, owner))
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "Properties fetched successfully",
		"properties": views,
	})
}

// Get は物件詳細のハンドラーです。
func (h *Handler) Get(c *gin.Context) {
	if _, ok := h.identity(c); !ok {
		return
	}

	ctx := c.Request.Context()
	p, err := h.repo.Get(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, "get", notFoundOr(err, "Error fetching property by ID"))
		return
	}
	owner, err := h.ownerOf(ctx, p.Owner)
	if err != nil {
		h.fail(c, "get", apierr.Internal(err, "Error fetching property by ID"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Property fetched successfully",
		"property": viewOf(p, owner),
	})
}

// Update は物件更新のハンドラーです。所有者か管理者のみ更新できます。
func (h *Handler) Update(c *gin.Context) {
	identity, ok := h.identity(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	id := c.Param("id")
	existing, err := h.repo.Get(ctx, id)
	if err != nil {
		h.fail(c, "update", notFoundOr(err, "Error updating property by ID"))
		return
	}
	if !canModify(identity, existing) {
		h.fail(c, "update", forbidden())
		return
	}

	in, ok := h.bindInput(c)
	if !ok {
		return
	}

	p, err := h.repo.Update(ctx, id, func(p *Property) error {
		// 読み込み後に所有者が変わっていないことを保存直前にも確かめる
		if !canModify(identity, p) {
			return forbidden()
		}
		in.apply(p)
		return nil
	})
	if err != nil {
		h.fail(c, "update", notFoundOr(err, "Error updating property by ID"))
		return
	}
	owner, err := h.ownerOf(ctx, p.Owner)
	if err != nil {
		h.fail(c, "update", apierr.Internal(err, "Error updating property by ID"))
		return
	}
	h.metrics.PropertyOp("update", "success")

	c.JSON(http.StatusOK, gin.H{
		"message":  "Property updated successfully",
		"property": viewOf(p, owner),
	})
}

// Delete は物件削除のハンドラーです。所有者か管理者のみ削除できます。
func (h *Handler) Delete(c *gin.Context) {
	identity, ok := h.identity(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	id := c.Param("id")
	existing, err := h.repo.Get(ctx, id)
	if err != nil {
		h.fail(c, "delete", notFoundOr(err, "Error deleting property by ID"))
		return
	}
	if !canModify(identity, existing) {
		h.fail(c, "delete", forbidden())
		return
	}

	if err := h.repo.Delete(ctx, id); err != nil {
		h.fail(c, "delete", notFoundOr(err, "Error deleting property by ID"))
		return
	}
	h.metrics.PropertyOp("delete", "success")
	h.logger.Info(ctx, "property deleted", "propertyId", id, "by", identity.ID)

	c.JSON(http.StatusOK, gin.H{
		"message": "Property deleted successfully",
		"id":      id,
	})
}

func (h *Handler) identity(c *gin.Context) (auth.Identity, bool) {
	identity, ok := auth.IdentityFrom(c.Request.Context())
	if !ok {
		apierr.Respond(c, h.logger, apierr.Unauthorized(auth.CodeUnauthorized, "User is not authenticated"))
		return auth.Identity{}, false
	}
	return identity, true
}

func (h *Handler) bindInput(c *gin.Context) (Input, bool) {
	var in Input
	if err := c.ShouldBindJSON(&in); err != nil {
		h.fail(c, "validate", apierr.Binding(err, inputRule))
		return Input{}, false
	}
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		h.fail(c, "validate", err)
		return Input{}, false
	}
	return in, true
}

func (h *Handler) fail(c *gin.Context, op string, err error) {
	h.metrics.PropertyOp(op, string(apierr.KindOf(err)))
	apierr.Respond(c, h.logger, err)
}

// ownerOf は所有者の概要を返します。所有者のアカウントが既に無い場合は ID のみです。
func (h *Handler) ownerOf(ctx context.Context, ownerID string) (OwnerSummary, error) {
	acc, err := h.accounts.GetByID(ctx, ownerID)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return OwnerSummary{ID: ownerID}, nil
		}
		return OwnerSummary{}, err
	}
	return OwnerSummary{ID: acc.ID, Name: acc.Name, Email: acc.Email}, nil
}

func canModify(identity auth.Identity, p *Property) bool {
	return identity.Role == account.RoleAdmin || identity.ID == p.Owner
}

func forbidden() error {
	return apierr.Forbidden(auth.CodeForbidden, "You are not allowed to modify this property")
}

func notFoundOr(err error, message string) error {
	if errors.Is(err, ErrNotFound) {
		return apierr.NotFound("PROPERTY_NOT_FOUND", "Property not found")
	}
	var apiErr *apierr.Error
	if errors.As(err, &apiErr) {
		return err
	}
	return apierr.Internal(err, message)
}

func viewOf(p *Property, owner OwnerSummary) View {
	images := p.Images
	if images == nil {
		images = []string{}
	}
	return View{
		ID:            p.ID,
		PropertyTitle: p.PropertyTitle,
		Description:   p.Description,
		Price:         p.Price,
		Location:      p.Location,
		Images:        images,
		Rating:        p.Rating,
		Owner:         owner,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}
