// Package mail provides email delivery for regression reports: plain-text
// report and subject rendering from embedded templates, MIME composition
// with an optional console log attachment, and SMTP sending.
package mail
