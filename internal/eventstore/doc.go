// Package eventstore はリスクイベントを永続化するEvent Storeを提供する。
//
// リスクイベントの識別子の採番と永続化を唯一担うコンポーネントで、
// イベントは不変（immutable）であり、追記のみ（append-only）で運用される。
//
// 主な機能:
//   - イベントの追記（Append）
//   - IDによるイベント取得（FetchByID）
//   - 発生日時の降順での取得。リスクレベルによる絞り込みは任意（QueryRecent）
package eventstore
