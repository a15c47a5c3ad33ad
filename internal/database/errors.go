package database

import "errors"

// ErrNoHistory is returned when opening a database that does not exist yet,
// i.e. nothing has been crawled with history enabled.
var ErrNoHistory = errors.New("no crawl history")
