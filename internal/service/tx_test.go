package service

import "context"

type testTxRepos struct {
	profiles   ProfileRepositoryInterface
	searchLogs SearchLogRepository
}

func (t *testTxRepos) Profiles() ProfileRepositoryInterface {
	return t.profiles
}

func (t *testTxRepos) SearchLogs() SearchLogRepository {
	return t.searchLogs
}

type testTxRunner struct {
	repos  TxRepositories
	called bool
	err    error
}

func (t *testTxRunner) WithTx(ctx context.Context, fn func(repos TxRepositories) error) error {
	t.called = true
	if t.err != nil {
		return t.err
	}
	return fn(t.repos)
}
