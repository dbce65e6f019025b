package handlers

// Start renders the welcome banner followed by the first prompt and focuses the input. It is called
// once, before any Submit.
func (c *Controller) Start() {
	c.renderer.AddWelcome(c.labels.Welcome)
	c.renderer.AddPrompt(false)
	c.input.Focus()
}
