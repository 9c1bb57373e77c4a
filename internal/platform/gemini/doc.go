// Package gemini provides the Gemini text provider and the Imagen image
// generator, both built on Google's genai SDK.
package gemini
