// Package env implements {{variable}} substitution for hitcron.
//
// It provides functionality for:
//   - Replacing {{name}} placeholders with environment variable values
//   - Leaving unmatched placeholders untouched and reporting them as warnings
//   - Substituting header maps and structured JSON bodies
//
// Placeholders of the form {{response.body.path}} are not environment
// variables; they are resolved afterwards by the capture package.
package env
