package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mcmanager/milkledger/internal/domain/models"
	"github.com/mcmanager/milkledger/internal/domain/period"
	"github.com/mcmanager/milkledger/internal/service/reporting"
)

const (
	helpMessage = "Milk collection assistant\n" +
		"Send *bill* for your statement of the current period.\n" +
		"Send *bill last* for the previous period, or *bill 2025-01-11* for a given one."
	unknownSenderMessage = "Sorry, this number is not registered with the cooperative. " +
		"Please contact the collection centre to update your mobile number."
)

// MemberFinder resolves senders to members.
type MemberFinder interface {
	FindByMobile(ctx context.Context, phone string) (models.Member, error)
}

// StatementSource prepares member statements.
type StatementSource interface {
	Statement(ctx context.Context, start time.Time, custNo int) (*reporting.Statement, error)
}

// Reply is the answer to a member command. Document is set when a
// statement PDF should follow the text.
type Reply struct {
	Text     string
	Document *models.OutboundDocument
}

// Dispatcher executes parsed member commands.
type Dispatcher interface {
	HandleCommand(ctx context.Context, cmd models.Command, sender string) (Reply, error)
}

// Service implements the Dispatcher interface.
type Service struct {
	members    MemberFinder
	statements StatementSource
	loc        *time.Location
	logger     *zap.Logger
	now        func() time.Time
}

// NewService constructs a command dispatcher.
func NewService(members MemberFinder, statements StatementSource, loc *time.Location, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		members:    members,
		statements: statements,
		loc:        loc,
		logger:     logger,
		now:        time.Now,
	}
}

// HandleCommand answers the sender. Senders whose number is not on a member
// record get a refusal and nothing else.
func (s *Service) HandleCommand(ctx context.Context, cmd models.Command, sender string) (Reply, error) {
	s.logger.Debug("dispatching command", zap.String("command", string(cmd.Type)), zap.String("sender", sender), zap.Strings("args", cmd.Args))

	member, err := s.members.FindByMobile(ctx, sender)
	if err != nil {
		s.logger.Info("message from unknown sender", zap.String("sender", sender), zap.Error(err))
		return Reply{Text: unknownSenderMessage}, nil
	}

	switch cmd.Type {
	case models.CommandBill:
		return s.bill(ctx, member, cmd.Args)
	case models.CommandHelp:
		return Reply{Text: fmt.Sprintf("Hello %s!\n%s", member.NameEn, helpMessage)}, nil
	default:
		return Reply{Text: "Sorry, I did not understand that.\n" + helpMessage}, nil
	}
}

func (s *Service) periodFor(args []string) (time.Time, error) {
	current := period.CurrentStart(s.now().In(s.loc))
	if len(args) == 0 {
		return current, nil
	}
	switch args[0] {
	case "last", "prev", "previous":
		return period.PreviousStart(current), nil
	}
	return period.ParseStart(args[0], s.loc)
}

func (s *Service) bill(ctx context.Context, member models.Member, args []string) (Reply, error) {
	start, err := s.periodFor(args)
	if err != nil {
		return Reply{Text: "Please send a period start date like 2025-01-11 (the 1st, 11th or 21st)."}, nil
	}

	st, err := s.statements.Statement(ctx, start, member.CustNo)
	switch {
	case errors.Is(err, reporting.ErrNoData):
		return Reply{Text: fmt.Sprintf("No milk collection is recorded for you in the period starting %s.", start.Format("Jan 2"))}, nil
	case err != nil:
		return Reply{}, fmt.Errorf("statement for custNo %d: %w", member.CustNo, err)
	}

	return Reply{
		Text: st.Message,
		Document: &models.OutboundDocument{
			To:       st.Phone,
			FileName: st.PDF.Name,
			Caption:  "Billing statement " + period.Format(start),
			MimeType: st.PDF.MimeType,
			Content:  st.PDF.Content,
		},
	}, nil
}
