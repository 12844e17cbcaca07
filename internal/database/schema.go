package database

import (
	"context"
	"fmt"
)

// schemaStatements creates the storefront tables in dependency order.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
	    id CHAR(36) PRIMARY KEY,
	    channel VARCHAR(32) NOT NULL DEFAULT 'mobile',
	    current_stage VARCHAR(64),
	    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS products (
	    id BIGINT PRIMARY KEY AUTO_INCREMENT,
	    name VARCHAR(255) NOT NULL,
	    category VARCHAR(100) NOT NULL,
	    brand VARCHAR(100),
	    keywords TEXT,
	    specs TEXT,
	    occasion VARCHAR(255),
	    image_url VARCHAR(512),
	    is_active BOOLEAN NOT NULL DEFAULT TRUE,
	    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	    INDEX idx_category (category),
	    INDEX idx_active (is_active)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS product_variants (
	    id BIGINT PRIMARY KEY AUTO_INCREMENT,
	    product_id BIGINT NOT NULL,
	    sizes TEXT,
	    color VARCHAR(64),
	    price DECIMAL(10,2) NOT NULL,
	    discount DECIMAL(10,2) NOT NULL DEFAULT 0,
	    sku VARCHAR(64) NOT NULL,
	    FOREIGN KEY (product_id) REFERENCES products(id),
	    UNIQUE KEY uk_sku (sku),
	    INDEX idx_price (price)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS inventory (
	    variant_id BIGINT PRIMARY KEY,
	    quantity INT NOT NULL DEFAULT 0,
	    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
	    FOREIGN KEY (variant_id) REFERENCES product_variants(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS cart_items (
	    id BIGINT PRIMARY KEY AUTO_INCREMENT,
	    session_id CHAR(36) NOT NULL,
	    variant_id BIGINT NOT NULL,
	    size VARCHAR(16) NOT NULL DEFAULT 'Universal',
	    quantity INT NOT NULL,
	    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	    FOREIGN KEY (session_id) REFERENCES sessions(id),
	    UNIQUE KEY uk_session_variant_size (session_id, variant_id, size)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS orders (
	    id CHAR(36) PRIMARY KEY,
	    session_id CHAR(36) NOT NULL,
	    total_amount DECIMAL(12,2) NOT NULL DEFAULT 0,
	    status ENUM('pending', 'processing', 'packed', 'shipped', 'delivered', 'completed', 'cancelled') NOT NULL DEFAULT 'pending',
	    created_at TIMESTAMP(3) DEFAULT CURRENT_TIMESTAMP(3),
	    updated_at TIMESTAMP(3) DEFAULT CURRENT_TIMESTAMP(3) ON UPDATE CURRENT_TIMESTAMP(3),
	    INDEX idx_session (session_id),
	    INDEX idx_status (status),
	    INDEX idx_created_at (created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS order_items (
	    id BIGINT PRIMARY KEY AUTO_INCREMENT,
	    order_id CHAR(36) NOT NULL,
	    variant_id BIGINT NOT NULL,
	    quantity INT NOT NULL,
	    price DECIMAL(10,2) NOT NULL,
	    FOREIGN KEY (order_id) REFERENCES orders(id),
	    INDEX idx_order_id (order_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS agent_events (
	    id CHAR(36) PRIMARY KEY,
	    session_id VARCHAR(64) NOT NULL,
	    agent_name VARCHAR(100) NOT NULL,
	    action VARCHAR(64) NOT NULL,
	    metadata JSON,
	    created_at TIMESTAMP(3) DEFAULT CURRENT_TIMESTAMP(3),
	    INDEX idx_session_created (session_id, created_at),
	    INDEX idx_created_at (created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// dropOrder lists tables children first so foreign keys do not block drops.
var dropOrder = []string{
	"agent_events",
	"order_items",
	"orders",
	"cart_items",
	"inventory",
	"product_variants",
	"products",
	"sessions",
}

// SetupSchema creates all tables used by the storefront
func (db *DB) SetupSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// DropSchema removes all storefront tables
func (db *DB) DropSchema(ctx context.Context) error {
	for _, table := range dropOrder {
		if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return fmt.Errorf("failed to drop %s: %w", table, err)
		}
	}
	return nil
}
