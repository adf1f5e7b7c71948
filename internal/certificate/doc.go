// Package certificate renders a name onto an uploaded certificate template.
//
// The pipeline is linear: Validate builds a Request from raw form fields,
// Renderer.Render decodes the template, measures and places the text, draws
// it onto a copy of the template and encodes the result as PNG. Every stage
// reports failures as *Error values carrying a Kind.
//
// Keep this package free of transport (HTTP) and infrastructure concerns.
package certificate
