// Package content turns raw provider output into a document: it extracts the
// title, builds the excerpt, normalises Markdown answers to HTML and replaces
// inline image placeholders with generated, uploaded images.
package content
