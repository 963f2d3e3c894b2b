package providers

import (
	"fmt"

	"anonbot/internal/structures"

	"github.com/gookit/validate"
)

type CnfValidator struct {
	conf *structures.Config
}

func NewCnfValidator(conf *structures.Config) *CnfValidator {
	return &CnfValidator{conf: conf}
}

func (cv *CnfValidator) Validate() error {
	v := validate.Struct(cv.conf)
	if !v.Validate() {
		return fmt.Errorf("invalid config: %s", v.Errors.One())
	}

	bot := cv.conf.Bot
	if bot.Mode == structures.ModeGroup && bot.TargetGroupID <= 0 {
		return fmt.Errorf("invalid config: bot.targetGroupId must be a positive id when bot.mode is %q", structures.ModeGroup)
	}
	for _, id := range bot.AdminIDs {
		if id <= 0 {
			return fmt.Errorf("invalid config: admin id %d is not a positive integer", id)
		}
	}
	if bot.OwnerID < 0 {
		return fmt.Errorf("invalid config: owner id %d is negative", bot.OwnerID)
	}
	return nil
}
