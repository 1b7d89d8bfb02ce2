// Package slot emits slot renders for a particle.
//
// A particle renders either manually, by calling Render with flags saying
// whether to send the template and the model, or automatically, by
// enabling Auto for a slot at construction. Auto slots are re-rendered
// with both template and model whenever the dispatcher calls Refresh,
// which it does after the sync that completes the particle's inputs and
// after every update.
//
// Template and model come from a Source, normally the particle's
// TemplateProvider and ModelProvider hooks. They are queries and must not
// change handle state.
package slot
