// Package capture resolves {{response.body.path}} placeholders against the
// response body of the previous call in a batch.
//
// Paths are dot separated sequences of object keys and array indices, for
// example {{response.body.data.items.0.id}}. Scalars are substituted as text,
// objects and arrays as compact JSON. A path that does not exist leaves its
// placeholder untouched without affecting the rest of the template.
package capture
