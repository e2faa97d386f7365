package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type writerMock struct {
	mock.Mock
}

func (m *writerMock) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

type NotifyProducerSuite struct {
	suite.Suite
	wm *writerMock
	p  *Producer
}

func (s *NotifyProducerSuite) SetupTest() {
	s.wm = &writerMock{}
	s.p = newProducerWithWriter(s.wm)
}

func (s *NotifyProducerSuite) TestPublish_BuildsNotifyMessage() {
	s.wm.
		On("WriteMessages", mock.Anything, mock.MatchedBy(func(msgs []kafka.Message) bool {
			if len(msgs) != 1 {
				return false
			}
			m := msgs[0]
			return m.Topic == "trackcode.notify" &&
				string(m.Key) == "AAA111" &&
				string(m.Value) == `{"code":"AAA111","chat_id":777,"status":"arrived"}`
		})).
		Return(nil).
		Once()

	err := s.p.Publish(context.Background(), "trackcode.notify",
		[]byte("AAA111"), []byte(`{"code":"AAA111","chat_id":777,"status":"arrived"}`))
	s.Require().NoError(err)
	s.wm.AssertExpectations(s.T())
}

func (s *NotifyProducerSuite) TestPublish_BrokerErrorWrapped() {
	want := errors.New("broker unavailable")
	s.wm.On("WriteMessages", mock.Anything, mock.Anything).Return(want).Once()

	err := s.p.Publish(context.Background(), "trackcode.notify", []byte("AAA111"), nil)
	s.Require().Error(err)
	s.Require().ErrorIs(err, want)
	s.Require().Contains(err.Error(), "kafka publish")
	s.wm.AssertExpectations(s.T())
}

func TestNotifyProducerSuite(t *testing.T) {
	suite.Run(t, new(NotifyProducerSuite))
}
