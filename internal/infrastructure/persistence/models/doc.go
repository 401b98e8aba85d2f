// Package models contains GORM persistence models that map to database tables.
// They are kept apart from the domain aggregates so that table layout (column
// types, indexes, minor-unit shadow columns) can change without touching the
// domain layer. Repositories convert with ToDomain / FromDomain.
package models
