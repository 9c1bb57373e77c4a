// Package generation defines the boundary between the queue runner and the
// external LLM services that write content. It holds the Provider contract
// shared by every text backend (OpenAI-compatible, Gemini, Ollama), the
// ImageGenerator contract, the deterministic prompt builder and the error
// taxonomy used to classify provider failures.
package generation
