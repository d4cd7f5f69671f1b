package repository

import "time"

// OrderListFilter 查询订单列表的过滤条件
type OrderListFilter struct {
	Page        int
	PageSize    int
	UserID      uint
	OrderNo     string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// SubOrderListFilter 查询子订单列表的过滤条件
type SubOrderListFilter struct {
	Page     int
	PageSize int
	ShopID   uint
	Status   string
}

// ShopListFilter 查询店铺列表的过滤条件
type ShopListFilter struct {
	Page     int
	PageSize int
	Search   string
	OnlyOpen bool
	OwnerID  uint
}

// CourierFilter 查询候选骑手的过滤条件
type CourierFilter struct {
	OnShiftOnly  bool
	LocatedAfter *time.Time
	ExcludeIDs   []uint
}
