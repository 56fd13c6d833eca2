package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
)

const coreSchema = `
CREATE TABLE IF NOT EXISTS products (
	id          UUID PRIMARY KEY,
	name        TEXT NOT NULL,
	slug        TEXT NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT '',
	price       NUMERIC(12,2) NOT NULL CHECK (price >= 0),
	wattage     INTEGER NOT NULL DEFAULT 0,
	category    TEXT NOT NULL DEFAULT '',
	image_urls  TEXT[] NOT NULL DEFAULT '{}',
	published   BOOLEAN NOT NULL DEFAULT FALSE,
	archived    BOOLEAN NOT NULL DEFAULT FALSE,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS products_listing_idx ON products (category, created_at DESC) WHERE published AND NOT archived;

CREATE TABLE IF NOT EXISTS orders (
	id                 UUID PRIMARY KEY,
	user_id            TEXT NOT NULL,
	total_price        NUMERIC(12,2) NOT NULL,
	status             TEXT NOT NULL DEFAULT 'pending_verification',
	shipping_address   JSONB NOT NULL,
	paystack_reference TEXT NOT NULL UNIQUE,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS orders_user_idx ON orders (user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS orders_status_idx ON orders (status);

CREATE TABLE IF NOT EXISTS order_items (
	id                UUID PRIMARY KEY,
	order_id          UUID NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
	product_id        UUID NOT NULL REFERENCES products(id),
	quantity          INTEGER NOT NULL CHECK (quantity > 0),
	price_at_purchase NUMERIC(12,2) NOT NULL
);
CREATE INDEX IF NOT EXISTS order_items_order_idx ON order_items (order_id);

CREATE TABLE IF NOT EXISTS cart_items (
	user_id    TEXT NOT NULL,
	product_id UUID NOT NULL REFERENCES products(id) ON DELETE CASCADE,
	quantity   INTEGER NOT NULL CHECK (quantity > 0),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (user_id, product_id)
);

CREATE TABLE IF NOT EXISTS wishlist_items (
	user_id    TEXT NOT NULL,
	product_id UUID NOT NULL REFERENCES products(id) ON DELETE CASCADE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (user_id, product_id)
);

CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	name          TEXT NOT NULL DEFAULT '',
	password_hash TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS password_reset_tokens (
	token_hash TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS subscribers (
	id         UUID PRIMARY KEY,
	email      TEXT NOT NULL UNIQUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

const contentSchema = `
CREATE TABLE IF NOT EXISTS %[1]s (
	id         UUID PRIMARY KEY,
	slug       TEXT NOT NULL UNIQUE,
	title      TEXT NOT NULL,
	summary    TEXT NOT NULL DEFAULT '',
	body       TEXT NOT NULL DEFAULT '',
	image_url  TEXT NOT NULL DEFAULT '',
	published  BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// EnsureSchema creates every table the service uses when missing.
func EnsureSchema(ctx context.Context, db *sql.DB, logger *logrus.Entry) error {
	if _, err := db.ExecContext(ctx, coreSchema); err != nil {
		return fmt.Errorf("ensure core schema: %w", err)
	}

	for _, kind := range models.ContentKinds {
		if _, err := db.ExecContext(ctx, fmt.Sprintf(contentSchema, kind)); err != nil {
			return fmt.Errorf("ensure %s schema: %w", kind, err)
		}
	}

	logger.WithField("content_tables", len(models.ContentKinds)).Info("Schema ensured")
	return nil
}
