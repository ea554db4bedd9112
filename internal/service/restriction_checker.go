package service

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/makerlab/booking-api/internal/model"
	"github.com/makerlab/booking-api/internal/repository"
	"github.com/makerlab/booking-api/internal/timeslot"
)

// RestrictionChecker проверяет не-лимитные ограничения машины для
// пользователя: полную блокировку, год поступления, маску email.
//
// Политика отказов НАМЕРЕННО несимметрична проверке скользящего окна:
// ошибка при чтении ограничений трактуется как "разрешить" (fail-open),
// чтобы сбой справочника не останавливал обычную работу. Проверка окна,
// наоборот, при ошибке отклоняет (fail-closed). Не «чинить» одинаково.
type RestrictionChecker struct {
	machineRepo     *repository.MachineRepository
	restrictionRepo *repository.RestrictionRepository
	calendar        *timeslot.Calendar
	logger          *zap.Logger
}

func NewRestrictionChecker(
	machineRepo *repository.MachineRepository,
	restrictionRepo *repository.RestrictionRepository,
	calendar *timeslot.Calendar,
	logger *zap.Logger,
) *RestrictionChecker {
	return &RestrictionChecker{
		machineRepo:     machineRepo,
		restrictionRepo: restrictionRepo,
		calendar:        calendar,
		logger:          logger,
	}
}

// Decision результат проверки доступа.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// CheckAccess проверяет, может ли пользователь пользоваться машиной.
// Лимиты использования здесь не проверяются: они не закрывают доступ к
// машине, а решаются при допуске конкретного бронирования.
func (c *RestrictionChecker) CheckAccess(ctx context.Context, userEmail string, machineID int64) Decision {
	machine, err := c.machineRepo.GetByID(ctx, machineID)
	if err != nil {
		c.logger.Warn("restriction lookup failed, allowing by fail-open policy",
			zap.Int64("machine_id", machineID), zap.Error(err))
		return Decision{Allowed: true}
	}
	if machine == nil {
		return Decision{Allowed: false, Reason: "machine does not exist"}
	}

	switch machine.RestrictionStatus {
	case model.RestrictionStatusNone:
		return Decision{Allowed: true}
	case model.RestrictionStatusBlocked:
		return Decision{Allowed: false, Reason: "machine is blocked by administrator"}
	case model.RestrictionStatusLimited:
		// Дальше по правилам
	default:
		return Decision{Allowed: true}
	}

	restrictions, err := c.restrictionRepo.ActiveByMachine(ctx, machineID, c.calendar.Now())
	if err != nil {
		c.logger.Warn("restriction lookup failed, allowing by fail-open policy",
			zap.Int64("machine_id", machineID), zap.Error(err))
		return Decision{Allowed: true}
	}

	for _, restriction := range restrictions {
		if restriction.Rule == nil {
			continue
		}
		if reason, denied := ruleDenies(restriction, userEmail); denied {
			return Decision{Allowed: false, Reason: reason}
		}
	}

	return Decision{Allowed: true}
}

// ruleDenies проверяет одно правило против пользователя. Правила лимита
// использования пропускаются: они не закрывают видимость машины.
func ruleDenies(restriction *model.MachineRestriction, userEmail string) (string, bool) {
	switch {
	case restriction.Rule.Year != nil:
		year, ok := parseEmailYear(userEmail)
		if !ok {
			return "", false
		}
		if yearRuleDenies(restriction.Rule.Year, year) {
			if restriction.Description != "" {
				return restriction.Description, true
			}
			return yearRuleMessage(restriction.Rule.Year), true
		}
	case restriction.Rule.EmailPattern != nil:
		if !emailMatchesPattern(restriction.Rule.EmailPattern.Pattern, userEmail) {
			return "email does not match required pattern " + restriction.Rule.EmailPattern.Pattern, true
		}
	}
	return "", false
}

// parseEmailYear извлекает трёхзначный год поступления из префикса email
// (формат 113xxxx@domain).
func parseEmailYear(email string) (int, bool) {
	if len(email) < 3 {
		return 0, false
	}
	year, err := strconv.Atoi(email[:3])
	if err != nil {
		return 0, false
	}
	return year, true
}

func yearRuleDenies(rule *model.YearRule, userYear int) bool {
	switch rule.Operator {
	case "gt":
		return userYear > rule.TargetYear
	case "gte":
		return userYear >= rule.TargetYear
	case "lt":
		return userYear < rule.TargetYear
	case "lte":
		return userYear <= rule.TargetYear
	case "eq":
		return userYear == rule.TargetYear
	}
	return false
}

func yearRuleMessage(rule *model.YearRule) string {
	switch rule.Operator {
	case "gt", "gte":
		return "restricted for users admitted in year " + strconv.Itoa(rule.TargetYear) + " or later"
	case "lt", "lte":
		return "restricted for users admitted in year " + strconv.Itoa(rule.TargetYear) + " or earlier"
	default:
		return "restricted for users admitted in year " + strconv.Itoa(rule.TargetYear)
	}
}

// emailMatchesPattern проверяет email по маске с подстановочным символом '*'.
func emailMatchesPattern(pattern, email string) bool {
	parts := strings.Split(pattern, "*")
	for i, part := range parts {
		parts[i] = regexp.QuoteMeta(part)
	}
	re, err := regexp.Compile("^" + strings.Join(parts, ".*"))
	if err != nil {
		return true // Некорректная маска не должна запирать машину
	}
	return re.MatchString(email)
}
