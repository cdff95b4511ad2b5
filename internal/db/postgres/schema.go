// Package postgres — schema.go: схема базы, встроенная в бинарник.
package postgres

// Schema — миграции в порядке применения. Отдельных .sql файлов нет.
var Schema = []Migration{
	{1, "members", migration001Members},
	{2, "activity_results", migration002ActivityResults},
	{3, "weekly_leaderboard_cache", migration003LeaderboardCache},
	{4, "system_settings", migration004Settings},
	{5, "admin", migration005Admin},
}

const migration001Members = `
CREATE TABLE IF NOT EXISTS members (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT UNIQUE NOT NULL,
    username VARCHAR(255) NOT NULL DEFAULT '',
    full_name VARCHAR(255) NOT NULL DEFAULT '',
    avatar_url TEXT NOT NULL DEFAULT '',
    total_points BIGINT NOT NULL DEFAULT 0,
    total_credits BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_members_username ON members(username);
`

const migration002ActivityResults = `
CREATE TABLE IF NOT EXISTS activity_results (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES members(user_id),
    activity_id BIGINT NOT NULL,
    percentage SMALLINT NOT NULL CHECK (percentage BETWEEN 0 AND 100),
    completion_seconds INTEGER,
    completed_at TIMESTAMPTZ NOT NULL,
    points_awarded BIGINT NOT NULL DEFAULT 0 CHECK (points_awarded >= 0),
    credits_awarded BIGINT NOT NULL DEFAULT 0 CHECK (credits_awarded >= 0),
    tier VARCHAR(16) NOT NULL,
    bonuses TEXT[] NOT NULL DEFAULT '{}',
    was_limited BOOLEAN NOT NULL DEFAULT FALSE,
    rewards_allowed BOOLEAN NOT NULL DEFAULT TRUE,
    risk_score NUMERIC(4,2) NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_activity_results_user_completed ON activity_results(user_id, completed_at DESC);
CREATE INDEX IF NOT EXISTS idx_activity_results_user_created ON activity_results(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_activity_results_completed ON activity_results(completed_at) WHERE rewards_allowed;
`

const migration003LeaderboardCache = `
CREATE TABLE IF NOT EXISTS weekly_leaderboard_cache (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES members(user_id),
    week_start_date DATE NOT NULL,
    week_end_date DATE NOT NULL,
    week_number SMALLINT NOT NULL,
    year SMALLINT NOT NULL,
    total_points BIGINT NOT NULL DEFAULT 0,
    total_credits BIGINT NOT NULL DEFAULT 0,
    activities_completed BIGINT NOT NULL DEFAULT 0,
    perfect_scores BIGINT NOT NULL DEFAULT 0,
    average_percentage NUMERIC(5,2) NOT NULL DEFAULT 0,
    points_rank INTEGER,
    credits_rank INTEGER,
    completion_rank INTEGER,
    improvement_from_last_week BIGINT,
    is_personal_best_week BOOLEAN NOT NULL DEFAULT FALSE,
    last_calculated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (user_id, week_start_date)
);
CREATE INDEX IF NOT EXISTS idx_leaderboard_week_points ON weekly_leaderboard_cache(week_start_date, total_points DESC);
`

const migration004Settings = `
CREATE TABLE IF NOT EXISTS system_settings (
    key VARCHAR(100) PRIMARY KEY,
    value TEXT,
    category VARCHAR(50) NOT NULL DEFAULT 'general',
    description TEXT NOT NULL DEFAULT '',
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

const migration005Admin = `
CREATE TABLE IF NOT EXISTS admin_sessions (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL,
    session_token VARCHAR(255) UNIQUE NOT NULL,
    authenticated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    expires_at TIMESTAMPTZ NOT NULL,
    last_activity TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    is_active BOOLEAN NOT NULL DEFAULT TRUE
);
CREATE INDEX IF NOT EXISTS idx_admin_sessions_user_id ON admin_sessions(user_id);
CREATE TABLE IF NOT EXISTS admin_login_attempts (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL,
    attempt_time TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    success BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_admin_login_attempts_user_time ON admin_login_attempts(user_id, attempt_time DESC);
`
