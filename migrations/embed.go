// Package migrations содержит goose миграции для postgres бэкенда KV хранилища.
package migrations

import "embed"

// FS встроенные SQL миграции; используется через goose.SetBaseFS
//
//go:embed *.sql
var FS embed.FS
