package kafka

const (
	TopicSessionStarted = "traffic.session.started"
	TopicSessionQueued  = "traffic.session.queued"
	TopicSessionStatus  = "traffic.session.status"
	TopicSessionEnded   = "traffic.session.ended"
	TopicRankingReset   = "traffic.ranking.reset"

	TopicHits = "traffic.hits"
)
