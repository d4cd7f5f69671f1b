package public

import (
	"errors"
	"strconv"

	handlershared "github.com/waimai-next/internal/http/handlers/shared"
	"github.com/waimai-next/internal/http/response"
	"github.com/waimai-next/internal/repository"
	"github.com/waimai-next/internal/service"

	"github.com/gin-gonic/gin"
)

// ListShops 店铺列表（公开）
func (h *Handler) ListShops(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = handlershared.NormalizePagination(page, pageSize)

	shops, total, err := h.ShopService.ListShops(repository.ShopListFilter{
		Page:     page,
		PageSize: pageSize,
		Search:   c.Query("search"),
		OnlyOpen: c.Query("only_open") == "true",
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal_error", err)
		return
	}

	totalPage := (total + int64(pageSize) - 1) / int64(pageSize)
	response.SuccessWithPage(c, shops, response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: totalPage,
	})
}

// GetShopMenu 店铺详情与菜单（公开）
func (h *Handler) GetShopMenu(c *gin.Context) {
	shopID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	shop, err := h.ShopService.GetShopWithMenu(c.Request.Context(), shopID)
	if err != nil {
		if errors.Is(err, service.ErrShopNotFound) {
			respondError(c, response.CodeNotFound, "error.shop_not_found", nil)
			return
		}
		respondError(c, response.CodeInternal, "error.internal_error", err)
		return
	}
	response.Success(c, shop)
}

type setShopStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

var shopStatusErrorRules = []mappedHandlerError{
	{target: service.ErrShopStatusInvalid, code: response.CodeBadRequest, key: "error.shop_status_invalid"},
	{target: service.ErrShopNotFound, code: response.CodeNotFound, key: "error.shop_not_found"},
	{target: service.ErrNotShopOwner, code: response.CodeForbidden, key: "error.not_shop_owner"},
}

// SetShopStatus 店主设置店铺营业状态
func (h *Handler) SetShopStatus(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	shopID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	var req setShopStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.invalid_request", err)
		return
	}

	shop, err := h.ShopService.SetShopStatus(c.Request.Context(), userID, shopID, req.Status)
	if err != nil {
		respondWithMappedError(c, err, shopStatusErrorRules, response.CodeInternal, "error.internal_error")
		return
	}
	response.Success(c, shop)
}
