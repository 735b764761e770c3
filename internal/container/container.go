package container

import (
	"errors"
	"io"

	app "mri-bot/internal/application"
	"mri-bot/internal/domain/port"
	"mri-bot/internal/domain/saliency"
)

// Deps внешние зависимости, собранные в main.
type Deps struct {
	Users     port.UserRepository
	Registry  *app.ClassifierRegistry
	Explainer *saliency.Explainer
	Narrator  port.Narrator
	Overlays  port.OverlayStore
	History   port.AnalysisRepository
}

type Container struct {
	UserService     *app.UserService
	AnalysisService *app.AnalysisService
	Registry        *app.ClassifierRegistry

	closers []io.Closer
}

func New(d Deps) *Container {
	userService := app.NewUserService(d.Users, d.Registry)
	analysisService := app.NewAnalysisService(userService, d.Registry, d.Explainer, d.Narrator, d.Overlays, d.History)

	c := &Container{
		UserService:     userService,
		AnalysisService: analysisService,
		Registry:        d.Registry,
	}
	c.closers = append(c.closers, d.Registry)
	if cl, ok := d.Narrator.(io.Closer); ok {
		c.closers = append(c.closers, cl)
	}
	if cl, ok := d.History.(io.Closer); ok {
		c.closers = append(c.closers, cl)
	}
	return c
}

// Close освобождает ресурсы в обратном порядке.
func (c *Container) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
