// Package models contains the GORM persistence models of the shop schema.
// Domain types stay free of ORM tags; each model converts to and from its
// domain counterpart with ToDomain / FromDomain style helpers.
//
// Files:
//   - catalog.go: products, SKUs, per-currency prices and cart lines (read side only)
//   - pricing.go: currencies, FX rates, discount policies and codes
//   - order.go: orders, items, applied discounts and the status log
//   - payment.go: payment attempts, refunds and refund items
//   - shipment.go: placeholder shipments created after payment
package models
