// Package session persists chat sessions in a local SQLite database. Each
// record keys on the CLI-assigned session id and carries the full message
// timeline, the project roots it belongs to, and accumulated token usage,
// so a panel can restore a conversation across editor restarts.
package session
