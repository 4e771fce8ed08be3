package main

// roadAct is an excerpt of the Road Act used when no seed file is given.
const roadAct = `
nodes:
  - {id: road, path: 도로법, title: 도로법, content: 도로법}
  - {id: road-1, path: 도로법::제1조, title: 제1조 목적, content: 제1조 목적}
  - id: road-1-0
    path: 도로법::제1조::본문
    leaf: true
    content: 이 법은 도로망의 계획수립, 도로 노선의 지정, 도로공사의 시행과 도로의 시설 기준, 도로의 관리·보전 및 비용 부담 등에 관한 사항을 규정하여 국민이 안전하고 편리하게 이용할 수 있는 도로의 건설과 공공복리의 향상에 이바지함을 목적으로 한다.
  - {id: road-2, path: 도로법::제2조, title: 제2조 정의, content: 제2조 정의}
  - id: road-2-1
    path: 도로법::제2조::①
    leaf: true
    content: 도로란 차도, 보도, 자전거도로, 측도, 터널, 교량, 육교 등 대통령령으로 정하는 시설로 구성된 것으로서 도로의 부속물을 포함한다.
  - id: road-2-2
    path: 도로법::제2조::②
    leaf: true
    content: 도로의 부속물이란 도로관리청이 도로의 편리한 이용과 안전 및 원활한 도로교통의 확보, 그 밖에 도로의 관리를 위하여 설치하는 시설 또는 공작물을 말한다.
  - {id: road-31, path: 도로법::제31조, title: 제31조 도로공사와 도로의 유지·관리, content: 제31조 도로공사와 도로의 유지·관리}
  - id: road-31-1
    path: 도로법::제31조::①
    leaf: true
    content: 도로공사와 도로의 유지·관리는 이 법 또는 다른 법률에 특별한 규정이 있는 경우 외에는 해당 도로의 도로관리청이 수행한다.
  - id: road-31-2
    path: 도로법::제31조::②
    leaf: true
    content: 도로관리청은 도로를 항상 양호한 상태로 유지·관리하여 일반 교통에 지장이 없도록 하여야 한다.
  - {id: road-61, path: 도로법::제61조, title: 제61조 도로의 점용 허가, content: 제61조 도로의 점용 허가}
  - id: road-61-1
    path: 도로법::제61조::①
    leaf: true
    content: 공작물·물건, 그 밖의 시설을 신설·개축·변경 또는 제거하거나 그 밖의 사유로 도로를 점용하려는 자는 도로관리청의 허가를 받아야 한다.
  - id: road-61-2
    path: 도로법::제61조::②
    leaf: true
    content: 도로관리청은 도로의 구조나 교통의 안전에 지장이 없는 경우에만 도로점용허가를 할 수 있다.
  - id: road-61-3
    path: 도로법::제61조::③
    leaf: true
    content: 도로점용허가의 기준과 절차 및 점용기간 등에 필요한 사항은 대통령령으로 정한다.
  - {id: road-66, path: 도로법::제66조, title: 제66조 점용료의 징수 등, content: 제66조 점용료의 징수 등}
  - id: road-66-1
    path: 도로법::제66조::①
    leaf: true
    content: 도로관리청은 도로점용허가를 받아 도로를 점용하는 자로부터 점용료를 징수할 수 있다.
  - id: road-66-2
    path: 도로법::제66조::②
    leaf: true
    content: 점용료의 산정기준 등에 관한 사항은 대통령령으로 정한다. 다만, 지방자치단체인 도로관리청이 관리하는 도로의 점용료 산정기준은 조례로 정한다.
  - {id: road-75, path: 도로법::제75조, title: 제75조 도로에 관한 금지행위, content: 제75조 도로에 관한 금지행위}
  - id: road-75-0
    path: 도로법::제75조::본문
    leaf: true
    content: 누구든지 정당한 사유 없이 도로를 파손하거나 도로에 토석, 입목·죽 등 장애물을 쌓아놓는 행위 또는 그 밖에 도로의 구조나 교통에 지장을 주는 행위를 하여서는 아니 된다.
  - {id: road-77, path: 도로법::제77조, title: 제77조 차량의 운행 제한 등, content: 제77조 차량의 운행 제한 등}
  - id: road-77-1
    path: 도로법::제77조::①
    leaf: true
    content: 도로관리청은 도로 구조를 보전하고 도로에서의 차량 운행으로 인한 위험을 방지하기 위하여 필요하면 대통령령으로 정하는 바에 따라 차량의 운행을 제한할 수 있다.
  - id: road-77-2
    path: 도로법::제77조::②
    leaf: true
    content: 제1항에도 불구하고 도로관리청은 물품의 특성상 분리하여 운송하기 곤란한 경우에는 운행허가를 할 수 있다.
edges:
  - {source: road, target: road-1, context: 도로법 제1조 목적, content_type: structural}
  - {source: road, target: road-2, context: 도로법 제2조 정의, content_type: structural}
  - {source: road, target: road-31, context: 도로법 제31조 도로공사와 유지관리, content_type: structural}
  - {source: road, target: road-61, context: 도로법 제61조 도로의 점용 허가, content_type: structural}
  - {source: road, target: road-66, context: 도로법 제66조 점용료의 징수, content_type: structural}
  - {source: road, target: road-75, context: 도로법 제75조 금지행위, content_type: structural}
  - {source: road, target: road-77, context: 도로법 제77조 차량의 운행 제한, content_type: structural}
  - {source: road-1, target: road-1-0, context: 도로법의 목적}
  - {source: road-2, target: road-2-1, context: 도로의 정의, content_type: detail}
  - {source: road-2, target: road-2-2, context: 도로의 부속물의 정의, content_type: detail}
  - {source: road-31, target: road-31-1, context: 도로관리청의 유지관리 책임}
  - {source: road-31, target: road-31-2, context: 양호한 상태로 유지할 의무, content_type: detail}
  - {source: road-61, target: road-61-1, context: 도로 점용에는 허가가 필요하다}
  - {source: road-61, target: road-61-2, context: 점용 허가의 요건, content_type: detail}
  - {source: road-61, target: road-61-3, context: 점용 허가 기준은 대통령령에 위임, content_type: reference}
  - {source: road-66, target: road-66-1, context: 점용료 징수 권한}
  - {source: road-66, target: road-66-2, context: 조례로 정하는 점용료 산정기준, content_type: exception}
  - {source: road-75, target: road-75-0, context: 도로 파손과 장애물 적치 금지}
  - {source: road-77, target: road-77-1, context: 차량 운행 제한}
  - {source: road-77, target: road-77-2, context: 분리 운송이 곤란한 물품의 운행허가, content_type: exception}
`
