package report

// IssuedNames returns how many generated names the renderer is tracking
func (r *Renderer) IssuedNames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.issued)
}
