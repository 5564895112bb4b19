// Package logging provides structured, rotating file logging for the
// ahnlich-db server. Comprehensive JSON logs are written to
// ~/.ahnlich/logs/ in addition to stderr.
package logging
