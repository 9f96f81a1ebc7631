package storage

import (
	"database/sql"
	"fmt"
	"strings"

	"cafe-fulfillment/internal/config"
	"cafe-fulfillment/internal/logger"
	"cafe-fulfillment/internal/models"

	_ "github.com/go-sql-driver/mysql"
)

type MySQLStore struct {
	db  *sql.DB
	log *logger.Logger
}

func NewMySQLStore(cfg config.DatabaseConfig, log *logger.Logger) (*MySQLStore, error) {
	log.LogDatabase("CONNECT", "mysql", fmt.Sprintf("Connecting to MySQL at %s:%s", cfg.Host, cfg.Port))

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		log.Error("DATABASE", "Failed to open MySQL connection: "+err.Error())
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MaxLifetime)

	if err := db.Ping(); err != nil {
		log.Error("DATABASE", "Failed to ping MySQL: "+err.Error())
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &MySQLStore{
		db:  db,
		log: log,
	}

	if err := store.initTables(); err != nil {
		log.Error("DATABASE", "Failed to initialize tables: "+err.Error())
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}

	log.LogDatabase("SUCCESS", "mysql", "MySQL connection established and tables initialized")
	return store, nil
}

func (s *MySQLStore) initTables() error {
	s.log.LogDatabase("MIGRATE", "mysql", "Creating tables if not exist")

	queries := []string{
		`CREATE TABLE IF NOT EXISTS products (
			product_id VARCHAR(36) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			price DECIMAL(10,2) NOT NULL,
			prep_time_minutes INT NOT NULL DEFAULT 0
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`,

		`CREATE TABLE IF NOT EXISTS tables (
			table_id VARCHAR(36) PRIMARY KEY,
			capacity INT NOT NULL,
			location VARCHAR(255) NOT NULL DEFAULT ''
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`,

		`CREATE TABLE IF NOT EXISTS orders (
			order_id VARCHAR(36) PRIMARY KEY,
			table_id VARCHAR(36) NOT NULL,
			reservation_id VARCHAR(36) NOT NULL DEFAULT '',
			status VARCHAR(50) NOT NULL,
			payment_status VARCHAR(50) NOT NULL,
			ordered_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_orders_status (status),
			INDEX idx_orders_reservation (reservation_id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`,

		`CREATE TABLE IF NOT EXISTS order_items (
			item_id VARCHAR(36) PRIMARY KEY,
			order_id VARCHAR(36) NOT NULL,
			product_id VARCHAR(36) NOT NULL,
			quantity INT NOT NULL,
			unit_price DECIMAL(10,2) NOT NULL,
			status VARCHAR(50) NOT NULL,
			INDEX idx_items_order (order_id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`,

		`CREATE TABLE IF NOT EXISTS reservations (
			reservation_id VARCHAR(36) PRIMARY KEY,
			table_id VARCHAR(36) NOT NULL,
			customer_id VARCHAR(36) NOT NULL,
			reservation_datetime TIMESTAMP NOT NULL,
			party_size INT NOT NULL,
			status VARCHAR(50) NOT NULL,
			notes TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_reservations_table (table_id, status),
			INDEX idx_reservations_datetime (reservation_datetime)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	s.log.LogDatabase("SUCCESS", "mysql", "All tables ready")
	return nil
}

func (s *MySQLStore) LoadOrder(id string) (*models.Order, error) {
	s.log.Debug("DATABASE", fmt.Sprintf("Fetching order %s", id))

	query := `
    SELECT order_id, table_id, reservation_id, status, payment_status, ordered_at
    FROM orders WHERE order_id = ?
    `

	order := &models.Order{}
	err := s.db.QueryRow(query, id).Scan(
		&order.OrderID, &order.TableID, &order.ReservationID, &order.Status, &order.PaymentStatus, &order.OrderedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			s.log.LogDatabase("NOT_FOUND", "mysql", fmt.Sprintf("Order %s not found", id))
			return nil, fmt.Errorf("order not found")
		}
		s.log.Error("DATABASE", fmt.Sprintf("Failed to get order %s: %s", id, err.Error()))
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	return order, nil
}

func (s *MySQLStore) LoadOrderItems(orderID string) ([]*models.OrderItem, error) {
	s.log.Debug("DATABASE", fmt.Sprintf("Fetching items for order %s", orderID))

	query := `
    SELECT item_id, order_id, product_id, quantity, unit_price, status
    FROM order_items WHERE order_id = ?
    `

	rows, err := s.db.Query(query, orderID)
	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to list items for order %s: %s", orderID, err.Error()))
		return nil, fmt.Errorf("failed to list order items: %w", err)
	}
	defer rows.Close()

	var items []*models.OrderItem
	for rows.Next() {
		item := &models.OrderItem{}
		if err := rows.Scan(&item.ItemID, &item.OrderID, &item.ProductID, &item.Quantity, &item.UnitPrice, &item.Status); err != nil {
			s.log.Error("DATABASE", fmt.Sprintf("Failed to scan order item row: %s", err.Error()))
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, item)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return items, nil
}

func (s *MySQLStore) SaveOrder(order *models.Order) error {
	s.log.LogDatabase("INSERT", "mysql", fmt.Sprintf("Saving order %s", order.OrderID))

	query := `
    INSERT INTO orders (order_id, table_id, reservation_id, status, payment_status, ordered_at)
    VALUES (?, ?, ?, ?, ?, ?)
    `

	_, err := s.db.Exec(query,
		order.OrderID, order.TableID, order.ReservationID, order.Status, order.PaymentStatus, order.OrderedAt,
	)

	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to save order %s: %s", order.OrderID, err.Error()))
		return fmt.Errorf("failed to save order: %w", err)
	}

	return nil
}

func (s *MySQLStore) SaveOrderItems(items []*models.OrderItem) error {
	query := `
    INSERT INTO order_items (item_id, order_id, product_id, quantity, unit_price, status)
    VALUES (?, ?, ?, ?, ?, ?)
    `

	for _, item := range items {
		if _, err := s.db.Exec(query,
			item.ItemID, item.OrderID, item.ProductID, item.Quantity, item.UnitPrice, item.Status,
		); err != nil {
			s.log.Error("DATABASE", fmt.Sprintf("Failed to save order item %s: %s", item.ItemID, err.Error()))
			return fmt.Errorf("failed to save order item: %w", err)
		}
	}

	return nil
}

// UpdateOrderStatus flips the order status only if the current status still
// matches from. The (false, nil) return is the stale-transition signal.
func (s *MySQLStore) UpdateOrderStatus(orderID string, from, to models.OrderStatus) (bool, error) {
	s.log.LogDatabase("UPDATE", "mysql", fmt.Sprintf("Order %s: %s -> %s", orderID, from, to))

	query := `UPDATE orders SET status = ? WHERE order_id = ? AND status = ?`

	result, err := s.db.Exec(query, to, orderID, from)
	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to update order %s status: %s", orderID, err.Error()))
		return false, fmt.Errorf("failed to update order status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	return affected > 0, nil
}

// MarkItemsReady sets the items to ready in the same statement that checks
// the order is still preparing, so a concurrent cancel can never leave ready
// items on a cancelled order. (false, nil) means the order moved on.
func (s *MySQLStore) MarkItemsReady(orderID string, itemIDs []string) (bool, error) {
	if len(itemIDs) == 0 {
		return false, nil
	}

	s.log.LogDatabase("UPDATE", "mysql", fmt.Sprintf("Marking %d items ready for order %s", len(itemIDs), orderID))

	placeholders := strings.Repeat("?,", len(itemIDs))
	placeholders = placeholders[:len(placeholders)-1]
	query := fmt.Sprintf(`
    UPDATE order_items oi
    JOIN orders o ON o.order_id = oi.order_id
    SET oi.status = ?
    WHERE oi.order_id = ? AND o.status = ? AND oi.item_id IN (%s)`, placeholders)

	args := make([]interface{}, 0, len(itemIDs)+3)
	args = append(args, models.ItemReady, orderID, models.OrderPreparing)
	for _, id := range itemIDs {
		args = append(args, id)
	}

	result, err := s.db.Exec(query, args...)
	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to mark items ready for order %s: %s", orderID, err.Error()))
		return false, fmt.Errorf("failed to mark items ready: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	return affected > 0, nil
}

func (s *MySQLStore) GetProduct(id string) (*models.Product, error) {
	query := `SELECT product_id, name, price, prep_time_minutes FROM products WHERE product_id = ?`

	product := &models.Product{}
	err := s.db.QueryRow(query, id).Scan(&product.ProductID, &product.Name, &product.Price, &product.PrepTimeMinutes)

	if err != nil {
		if err == sql.ErrNoRows {
			s.log.LogDatabase("NOT_FOUND", "mysql", fmt.Sprintf("Product %s not found", id))
			return nil, fmt.Errorf("product not found")
		}
		s.log.Error("DATABASE", fmt.Sprintf("Failed to get product %s: %s", id, err.Error()))
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	return product, nil
}

func (s *MySQLStore) GetTable(id string) (*models.Table, error) {
	query := `SELECT table_id, capacity, location FROM tables WHERE table_id = ?`

	table := &models.Table{}
	err := s.db.QueryRow(query, id).Scan(&table.TableID, &table.Capacity, &table.Location)

	if err != nil {
		if err == sql.ErrNoRows {
			s.log.LogDatabase("NOT_FOUND", "mysql", fmt.Sprintf("Table %s not found", id))
			return nil, fmt.Errorf("table not found")
		}
		s.log.Error("DATABASE", fmt.Sprintf("Failed to get table %s: %s", id, err.Error()))
		return nil, fmt.Errorf("failed to get table: %w", err)
	}

	return table, nil
}

func (s *MySQLStore) GetReservation(id string) (*models.Reservation, error) {
	query := `
    SELECT reservation_id, table_id, customer_id, reservation_datetime, party_size, status, notes, created_at
    FROM reservations WHERE reservation_id = ?
    `

	r := &models.Reservation{}
	err := s.db.QueryRow(query, id).Scan(
		&r.ReservationID, &r.TableID, &r.CustomerID, &r.ReservationDatetime, &r.PartySize, &r.Status, &r.Notes, &r.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			s.log.LogDatabase("NOT_FOUND", "mysql", fmt.Sprintf("Reservation %s not found", id))
			return nil, fmt.Errorf("reservation not found")
		}
		s.log.Error("DATABASE", fmt.Sprintf("Failed to get reservation %s: %s", id, err.Error()))
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}

	return r, nil
}

func (s *MySQLStore) SaveReservation(r *models.Reservation) error {
	s.log.LogDatabase("INSERT", "mysql", fmt.Sprintf("Saving reservation %s for table %s", r.ReservationID, r.TableID))

	query := `
    INSERT INTO reservations (reservation_id, table_id, customer_id, reservation_datetime, party_size, status, notes, created_at)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?)
    `

	_, err := s.db.Exec(query,
		r.ReservationID, r.TableID, r.CustomerID, r.ReservationDatetime, r.PartySize, r.Status, r.Notes, r.CreatedAt,
	)

	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to save reservation %s: %s", r.ReservationID, err.Error()))
		return fmt.Errorf("failed to save reservation: %w", err)
	}

	return nil
}

func (s *MySQLStore) UpdateReservationStatus(id string, from, to models.ReservationStatus) (bool, error) {
	s.log.LogDatabase("UPDATE", "mysql", fmt.Sprintf("Reservation %s: %s -> %s", id, from, to))

	query := `UPDATE reservations SET status = ? WHERE reservation_id = ? AND status = ?`

	result, err := s.db.Exec(query, to, id, from)
	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to update reservation %s status: %s", id, err.Error()))
		return false, fmt.Errorf("failed to update reservation status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	return affected > 0, nil
}

func (s *MySQLStore) LoadReservationsForTable(tableID string, statuses []models.ReservationStatus) ([]*models.Reservation, error) {
	s.log.Debug("DATABASE", fmt.Sprintf("Fetching reservations for table %s", tableID))

	query := `
    SELECT reservation_id, table_id, customer_id, reservation_datetime, party_size, status, notes, created_at
    FROM reservations WHERE table_id = ?
    `
	args := []interface{}{tableID}

	if len(statuses) > 0 {
		placeholders := strings.Repeat("?,", len(statuses))
		placeholders = placeholders[:len(placeholders)-1]
		query += fmt.Sprintf(" AND status IN (%s)", placeholders)
		for _, st := range statuses {
			args = append(args, st)
		}
	}

	query += " ORDER BY reservation_datetime"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to list reservations for table %s: %s", tableID, err.Error()))
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	defer rows.Close()

	var reservations []*models.Reservation
	for rows.Next() {
		r := &models.Reservation{}
		if err := rows.Scan(
			&r.ReservationID, &r.TableID, &r.CustomerID, &r.ReservationDatetime, &r.PartySize, &r.Status, &r.Notes, &r.CreatedAt,
		); err != nil {
			s.log.Error("DATABASE", fmt.Sprintf("Failed to scan reservation row: %s", err.Error()))
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		reservations = append(reservations, r)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return reservations, nil
}

func (s *MySQLStore) HealthCheck() error {
	return s.db.Ping()
}

func (s *MySQLStore) Close() error {
	s.log.LogDatabase("CLOSE", "mysql", "Closing MySQL connection")
	return s.db.Close()
}
