// Package models defines the core domain models for Splittat.
//
// # Entities
//
//   - User: registered account that owns receipts and group memberships
//   - Receipt / ReceiptItem: an uploaded receipt and its parsed line items
//   - Group / GroupMember: a named set of users that splits receipts together
//   - Split / ItemAssignment: one resolution of who owes what for a receipt
//
// # Design Principles
//
//  1. Avoid circular references: relationships are ID strings, never pointers
//     back to the parent. Lookups go through the storage layer.
//  2. Money is decimal.Decimal (two places for amounts, four for percentages).
//  3. Enums are string-backed so they persist and serialize readably.
package models
