// Package repo 实现支付订单数据访问层。
package repo

import (
	"database/sql"
	"fmt"

	"github.com/JinhuaXu/flowhub/internal/domain"
)

// OrderRepository 定义支付订单数据访问接口
type OrderRepository interface {
	Create(order *domain.Order) error
	GetByID(id string) (*domain.Order, error)
	// Close 将pending订单原子地转移到终态，返回是否发生了转移。
	// 返回false表示订单不存在或已被关闭。
	Close(id string, status domain.OrderStatus) (bool, error)
	ListByUserID(userID int64, limit int) ([]*domain.Order, error)
}

// orderRepo 实现OrderRepository接口
type orderRepo struct {
	db *sql.DB
}

// NewOrderRepository 创建订单仓储实例
func NewOrderRepository(db *sql.DB) OrderRepository {
	return &orderRepo{db: db}
}

const orderColumns = `id, user_id, plan_id, amount, pay_method, status, duration_days, pay_url, created_at, updated_at`

// Create 创建订单
func (r *orderRepo) Create(order *domain.Order) error {
	query := `
		INSERT INTO orders (id, user_id, plan_id, amount, pay_method, status, duration_days, pay_url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query,
		order.ID,
		order.UserID,
		order.PlanID,
		order.Amount,
		string(order.PayMethod),
		string(order.Status),
		order.DurationDays,
		order.PayURL,
	)
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}

	return nil
}

// GetByID 根据订单号查询订单
func (r *orderRepo) GetByID(id string) (*domain.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE id = ?`, orderColumns)

	order := &domain.Order{}
	err := r.db.QueryRow(query, id).Scan(
		&order.ID,
		&order.UserID,
		&order.PlanID,
		&order.Amount,
		&order.PayMethod,
		&order.Status,
		&order.DurationDays,
		&order.PayURL,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get order by id: %w", err)
	}

	return order, nil
}

// Close 关闭订单
// 条件更新保证 pending 到终态的转移只发生一次，
// 并发回调中只有抢到转移的那一方拿到 true。
func (r *orderRepo) Close(id string, status domain.OrderStatus) (bool, error) {
	query := `
		UPDATE orders SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?
	`

	result, err := r.db.Exec(query, string(status), id, string(domain.OrderStatusPending))
	if err != nil {
		return false, fmt.Errorf("close order: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get affected rows: %w", err)
	}

	return affected > 0, nil
}

// ListByUserID 查询用户最近的订单
func (r *orderRepo) ListByUserID(userID int64, limit int) ([]*domain.Order, error) {
	if limit <= 0 {
		limit = 20
	}

	query := fmt.Sprintf(`
		SELECT %s FROM orders
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, orderColumns)

	rows, err := r.db.Query(query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		order := &domain.Order{}
		err := rows.Scan(
			&order.ID,
			&order.UserID,
			&order.PlanID,
			&order.Amount,
			&order.PayMethod,
			&order.Status,
			&order.DurationDays,
			&order.PayURL,
			&order.CreatedAt,
			&order.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}

	return orders, nil
}
