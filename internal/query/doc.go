// Package query はリスクイベントの参照と登録を提供するQuery Serviceを実装する。
//
// Serviceはビジネスロジックを持たず、Event Storeの追記・ID取得・直近検索を
// そのまま呼び出す。ServerはServiceをHTTP(gin)で公開する。
package query
