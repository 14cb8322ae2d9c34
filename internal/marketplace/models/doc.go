// Package models defines the marketplace domain entities: accounts, candidate
// profiles, organizations and their details, jobs, applications and messages.
// The structs carry gorm tags and are persisted as-is by the db package.
package models
