package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"quiz-proctor/internal/domain"
)

func (c *Client) GetTest(ctx context.Context, testID int64) (domain.Test, error) {
	var test domain.Test
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("tests/%d/", testID), 0, nil, &test); err != nil {
		if IsStatus(err, http.StatusNotFound) {
			return domain.Test{}, domain.ErrTestNotFound
		}
		return domain.Test{}, err
	}
	if test.ID == 0 {
		return domain.Test{}, domain.ErrTestNotFound
	}
	return test, nil
}

// LoadQuestions draws the question set for one candidate. The API applies
// its own randomisation and attempt limits.
func (c *Client) LoadQuestions(ctx context.Context, key domain.QuestionSetKey) ([]domain.Question, error) {
	q := url.Values{}
	q.Set("trial", strconv.FormatBool(key.Trial))
	q.Set("telegram_id", strconv.FormatInt(key.TelegramID, 10))
	path := fmt.Sprintf("tests/%d/questions/?%s", key.TestID, q.Encode())

	var questions []domain.Question
	if err := c.do(ctx, http.MethodGet, path, key.TelegramID, nil, &questions); err != nil {
		if IsStatus(err, http.StatusNotFound) {
			return nil, domain.ErrTestNotFound
		}
		return nil, err
	}
	return questions, nil
}

func (c *Client) SubmitResult(ctx context.Context, submission domain.Submission) (domain.SubmissionResult, error) {
	var result domain.SubmissionResult
	if err := c.do(ctx, http.MethodPost, "results/", submission.TelegramID, submission, &result); err != nil {
		return domain.SubmissionResult{}, err
	}
	return result, nil
}

type leaveRequest struct {
	TelegramID int64 `json:"telegram_id"`
	Attempts   int   `json:"attempts"`
	TestID     int64 `json:"test_id"`
}

func (c *Client) NotifyLeaveAttempt(ctx context.Context, testID, telegramID int64, attempts int) (domain.LeaveAck, error) {
	var ack domain.LeaveAck
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("tests/%d/notify_page_leave/", testID), telegramID, leaveRequest{
		TelegramID: telegramID,
		Attempts:   attempts,
		TestID:     testID,
	}, &ack)
	return ack, err
}

type blockRequest struct {
	TelegramID int64  `json:"telegram_id"`
	Reason     string `json:"reason"`
}

func (c *Client) BlockUser(ctx context.Context, testID, telegramID int64, reason string) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("tests/%d/block_user/", testID), telegramID, blockRequest{
		TelegramID: telegramID,
		Reason:     reason,
	}, nil)
}
